package jotformsync

import (
	"context"
	"errors"

	"github.com/stageworks/roster_backend/models"
	"gorm.io/gorm"
)

// FindExistingMember looks up by submission id, then by exact email. nil, nil means no match.
// Emails are compared as stored; the import path does not lowercase.
func FindExistingMember(ctx context.Context, db *gorm.DB, candidate *MemberCandidate) (*models.Member, error) {
	if candidate == nil {
		return nil, nil
	}
	if candidate.ExternalSubmissionId != "" {
		member, err := firstMember(ctx, db, "external_submission_id = ?", candidate.ExternalSubmissionId)
		if err != nil || member != nil {
			return member, err
		}
	}
	if candidate.Email != "" {
		cond := "email = ?"
		if db.Dialector.Name() == "mysql" {
			// default mysql collations are case-insensitive
			cond = "BINARY email = ?"
		}
		return firstMember(ctx, db, cond, candidate.Email)
	}
	return nil, nil
}

func firstMember(ctx context.Context, db *gorm.DB, cond string, arg any) (*models.Member, error) {
	var member models.Member
	err := db.WithContext(ctx).Where(cond, arg).Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

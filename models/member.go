package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/utils"
	"gorm.io/gorm"
)

var (
	ErrMemberHasPayments = errors.New("member has payments and cannot be deleted")
	ErrDuplicateEmail    = errors.New("a member with this email already exists")
	ErrNegativeTuition   = errors.New("tuition amount must not be negative")
	ErrInvalidPhone      = errors.New("invalid phone number")
)

type Member struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	FirstName            string          `gorm:"size:100;not null" json:"first_name"`
	LastName             string          `gorm:"size:100;not null" json:"last_name"`
	LegalName            string          `gorm:"size:200" json:"legal_name"`
	Email                string          `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone                string          `gorm:"size:30" json:"phone"`
	ParentName           string          `gorm:"size:200" json:"parent_name"`
	ParentEmail          string          `gorm:"size:255" json:"parent_email"`
	ParentPhone          string          `gorm:"size:30" json:"parent_phone"`
	Address              string          `gorm:"type:text" json:"address"`
	Birthday             string          `gorm:"size:10" json:"birthday"`
	Age                  *int            `json:"age"`
	Section              string          `gorm:"size:100;index" json:"section"`
	Instrument           string          `gorm:"size:100" json:"instrument"`
	SerialNumber         string          `gorm:"size:100" json:"serial_number"`
	Season               string          `gorm:"size:20;index" json:"season"`
	TuitionAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tuition_amount"`
	ContractSigned       bool            `gorm:"not null;default:false" json:"contract_signed"`
	Source               MemberSource    `gorm:"size:20;not null;default:manual" json:"source"`
	ExternalSubmissionId *string         `gorm:"size:64;uniqueIndex" json:"external_submission_id"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMember struct {
	FirstName      string           `json:"first_name" validate:"required,max=100"`
	LastName       string           `json:"last_name" validate:"required,max=100"`
	LegalName      string           `json:"legal_name" validate:"max=200"`
	Email          string           `json:"email" validate:"required,email,max=255"`
	Phone          string           `json:"phone" validate:"max=30"`
	ParentName     string           `json:"parent_name" validate:"max=200"`
	ParentEmail    string           `json:"parent_email" validate:"omitempty,email"`
	ParentPhone    string           `json:"parent_phone" validate:"max=30"`
	Address        string           `json:"address"`
	Birthday       string           `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Section        string           `json:"section" validate:"max=100"`
	Instrument     string           `json:"instrument" validate:"max=100"`
	SerialNumber   string           `json:"serial_number" validate:"max=100"`
	Season         string           `json:"season" validate:"max=20"`
	TuitionAmount  *decimal.Decimal `json:"tuition_amount"`
	ContractSigned bool             `json:"contract_signed"`
}

type MemberFilter struct {
	Season  string
	Section string
	Source  string
	Search  string
	Limit   int
	Offset  int
}

// CurrentAge derives age from the birthday; falls back to the stored age.
func (m Member) CurrentAge(now time.Time) *int {
	if m.Birthday == "" {
		return m.Age
	}
	dob, err := time.Parse("2006-01-02", m.Birthday)
	if err != nil {
		return m.Age
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return m.Age
	}
	return &age
}

func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// normalize trims and applies the manual-entry rules: lowercased email, E.164 phones when parseable.
func (input *NewMember) normalize() error {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = utils.NormalizeEmail(input.Email)
	input.ParentEmail = utils.NormalizeEmail(input.ParentEmail)

	if err := utils.GetValidator().Struct(input); err != nil {
		return err
	}

	region := utils.DefaultPhoneRegion()
	for _, p := range []*string{&input.Phone, &input.ParentPhone} {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		formatted, err := utils.FormatPhoneNumber(*p, region)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPhone, *p)
		}
		*p = formatted
	}
	return nil
}

func (input NewMember) apply(m *Member) {
	m.FirstName = input.FirstName
	m.LastName = input.LastName
	m.LegalName = input.LegalName
	m.Email = input.Email
	m.Phone = input.Phone
	m.ParentName = input.ParentName
	m.ParentEmail = input.ParentEmail
	m.ParentPhone = input.ParentPhone
	m.Address = input.Address
	m.Birthday = input.Birthday
	m.Section = input.Section
	m.Instrument = input.Instrument
	m.SerialNumber = input.SerialNumber
	m.ContractSigned = input.ContractSigned
	if input.Season != "" {
		m.Season = input.Season
	}
	if input.TuitionAmount != nil {
		m.TuitionAmount = *input.TuitionAmount
	}
}

// emailTaken compares case-insensitively; used on the manual path only.
func emailTaken(ctx context.Context, db *gorm.DB, email string, exceptId int) (bool, error) {
	var count int64
	q := db.WithContext(ctx).Model(&Member{}).Where("LOWER(email) = ?", strings.ToLower(email))
	if exceptId > 0 {
		q = q.Where("id <> ?", exceptId)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func CreateMember(ctx context.Context, input *NewMember) (*Member, error) {
	db := config.GetDB()
	if err := input.normalize(); err != nil {
		return nil, err
	}
	taken, err := emailTaken(ctx, db, input.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateEmail
	}

	member := Member{
		Source: MemberSourceManual,
		Season: config.DefaultSeason(),
	}
	input.apply(&member)
	if err := db.WithContext(ctx).Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &member, nil
}

func UpdateMember(ctx context.Context, id int, input *NewMember) (*Member, error) {
	db := config.GetDB()
	member, err := GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.normalize(); err != nil {
		return nil, err
	}
	taken, err := emailTaken(ctx, db, input.Email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateEmail
	}
	input.apply(member)
	if err := db.WithContext(ctx).Save(member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return member, nil
}

func UpdateMemberTuition(ctx context.Context, id int, amount decimal.Decimal) (*Member, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeTuition
	}
	db := config.GetDB()
	member, err := GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(member).Update("tuition_amount", amount).Error; err != nil {
		return nil, err
	}
	member.TuitionAmount = amount
	return member, nil
}

// DeleteMember refuses when any payment row, active or not, references the member.
func DeleteMember(ctx context.Context, id int) (*Member, error) {
	db := config.GetDB()
	member, err := GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := db.WithContext(ctx).Model(&Payment{}).Where("member_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrMemberHasPayments
	}
	if err := db.WithContext(ctx).Delete(member).Error; err != nil {
		return nil, err
	}
	return member, nil
}

func GetMember(ctx context.Context, id int) (*Member, error) {
	db := config.GetDB()
	var member Member
	if err := db.WithContext(ctx).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &member, nil
}

func GetMembersByIds(ctx context.Context, ids []int) ([]*Member, error) {
	db := config.GetDB()
	var results []*Member
	if err := db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListMembers(ctx context.Context, filter MemberFilter) ([]*Member, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&Member{})
	if filter.Season != "" {
		q = q.Where("season = ?", filter.Season)
	}
	if filter.Section != "" {
		q = q.Where("section = ?", filter.Section)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var results []*Member
	if err := q.Order("last_name, first_name, id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

package models

type Identifier interface {
	GetId() int
}

// RelatedData groups loader results under the id of their owner.
type RelatedData interface {
	GetReferenceId() int
}

func (m Member) GetId() int {
	return m.ID
}

func (s PaymentSchedule) GetId() int {
	return s.ID
}

func (p Payment) GetId() int {
	return p.ID
}

func (p Payment) GetReferenceId() int {
	return p.MemberId
}

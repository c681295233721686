package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/provenroll/enrollfix_backend/utils"
)

type FieldObserved string

const (
	FieldTermDate            FieldObserved = "term_date"
	FieldEffectiveDate       FieldObserved = "effective_date"
	FieldCredentialingStatus FieldObserved = "credentialing_status"
	FieldEnrollmentStatus    FieldObserved = "enrollment_status"
	FieldTaxId               FieldObserved = "tax_id"
	FieldPayerId             FieldObserved = "payer_id"
	FieldGroupBilling        FieldObserved = "group_billing"
	FieldObservedOther       FieldObserved = "other"
)

type EvidenceType string

const (
	EvidenceEmail          EvidenceType = "email"
	EvidencePhoneCall      EvidenceType = "phone_call"
	EvidencePayerPortal    EvidenceType = "payer_portal"
	EvidenceLetter         EvidenceType = "letter"
	EvidenceInternalRecord EvidenceType = "internal_record"
	EvidenceOther          EvidenceType = "other"
)

// Observation is a single reported discrepancy in provider-enrollment data.
type Observation struct {
	ID               int           `gorm:"primary_key" json:"id"`
	ProviderNpi      string        `gorm:"size:10;not null;index" json:"provider_npi"`
	ProviderName     string        `gorm:"size:255;not null" json:"provider_name"`
	PayerName        string        `gorm:"size:255;default:null" json:"payer_name"`
	FieldObserved    FieldObserved `gorm:"size:32;not null" json:"field_observed"`
	SystemAName      string        `gorm:"size:100;default:null" json:"system_a_name"`
	SystemAValue     string        `gorm:"size:255;default:null" json:"system_a_value"`
	SystemBName      string        `gorm:"size:100;default:null" json:"system_b_name"`
	SystemBValue     string        `gorm:"size:255;default:null" json:"system_b_value"`
	CorrectedValue   string        `gorm:"size:255;not null" json:"corrected_value"`
	EvidenceType     EvidenceType  `gorm:"size:32;not null" json:"evidence_type"`
	EvidenceNotes    string        `gorm:"type:text" json:"evidence_notes"`
	SubmittedBy      string        `gorm:"size:64;not null" json:"submitted_by"`
	SubmittedByEmail string        `gorm:"size:255;not null" json:"submitted_by_email"`
	Status           ReviewStatus  `gorm:"size:16;not null;index" json:"status"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

type NewObservation struct {
	ProviderNpi    string        `json:"provider_npi" binding:"required,len=10,numeric"`
	ProviderName   string        `json:"provider_name" binding:"required"`
	PayerName      string        `json:"payer_name"`
	FieldObserved  FieldObserved `json:"field_observed" binding:"required,oneof=term_date effective_date credentialing_status enrollment_status tax_id payer_id group_billing other"`
	SystemAName    string        `json:"system_a_name"`
	SystemAValue   string        `json:"system_a_value"`
	SystemBName    string        `json:"system_b_name"`
	SystemBValue   string        `json:"system_b_value"`
	CorrectedValue string        `json:"corrected_value" binding:"required"`
	EvidenceType   EvidenceType  `json:"evidence_type" binding:"required,oneof=email phone_call payer_portal letter internal_record other"`
	EvidenceNotes  string        `json:"evidence_notes"`
}

func (o *Observation) SubjectType() string         { return utils.SubjectObservation }
func (o *Observation) SubjectId() int              { return o.ID }
func (o *Observation) CurrentStatus() ReviewStatus { return o.Status }

func (o *Observation) NewReviewEntry(reviewer Actor, decision ReviewDecision, comments string) *ReviewEntry {
	return &ReviewEntry{
		ObservationId: &o.ID,
		ReviewerId:    reviewer.Id,
		ReviewerEmail: reviewer.Email,
		Decision:      decision,
		Comments:      comments,
	}
}

func (o *Observation) ApplyDecision(tx *gorm.DB, decision ReviewDecision) (int64, error) {
	res := tx.Model(&Observation{}).
		Where("id = ? AND status = ?", o.ID, StatusPending).
		Update("status", ReviewStatus(decision))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		o.Status = ReviewStatus(decision)
	}
	return res.RowsAffected, nil
}

// CreateObservation validates the input and persists it as pending. All
// validation happens before any store write.
func CreateObservation(ctx context.Context, db *gorm.DB, input *NewObservation, submitter Actor) (*Observation, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if submitter.Id == "" {
		return nil, &utils.ValidationError{Field: "SubmittedBy", Reason: "submitter identity is required"}
	}

	observation := Observation{
		ProviderNpi:      input.ProviderNpi,
		ProviderName:     utils.TrimOrEmpty(input.ProviderName),
		PayerName:        utils.TrimOrEmpty(input.PayerName),
		FieldObserved:    input.FieldObserved,
		SystemAName:      utils.TrimOrEmpty(input.SystemAName),
		SystemAValue:     utils.TrimOrEmpty(input.SystemAValue),
		SystemBName:      utils.TrimOrEmpty(input.SystemBName),
		SystemBValue:     utils.TrimOrEmpty(input.SystemBValue),
		CorrectedValue:   utils.TrimOrEmpty(input.CorrectedValue),
		EvidenceType:     input.EvidenceType,
		EvidenceNotes:    utils.TrimOrEmpty(input.EvidenceNotes),
		SubmittedBy:      submitter.Id,
		SubmittedByEmail: submitter.Email,
		Status:           StatusPending,
	}
	if observation.CorrectedValue == "" {
		return nil, &utils.ValidationError{Field: "CorrectedValue", Reason: "must not be blank"}
	}
	if err := db.WithContext(ctx).Create(&observation).Error; err != nil {
		return nil, err
	}
	return &observation, nil
}

func GetObservation(ctx context.Context, db *gorm.DB, id int) (*Observation, error) {
	var observation Observation
	err := db.WithContext(ctx).First(&observation, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &observation, nil
}

// ListObservations returns newest first, optionally filtered by status.
func ListObservations(ctx context.Context, db *gorm.DB, status ReviewStatus, limit int) ([]Observation, error) {
	q := db.WithContext(ctx).Model(&Observation{}).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var observations []Observation
	if err := q.Find(&observations).Error; err != nil {
		return nil, err
	}
	return observations, nil
}

// ObservationStatusCounts backs the dashboard rollup tiles.
func ObservationStatusCounts(ctx context.Context, db *gorm.DB) (map[ReviewStatus]int64, error) {
	return statusCounts(ctx, db, &Observation{})
}

type statusCountRow struct {
	Status ReviewStatus
	N      int64
}

func statusCounts(ctx context.Context, db *gorm.DB, model interface{}) (map[ReviewStatus]int64, error) {
	var rows []statusCountRow
	err := db.WithContext(ctx).Model(model).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[ReviewStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

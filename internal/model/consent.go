package model

import (
	"time"

	"github.com/google/uuid"
)

// ConsentGate holds the named approvals a candidate gives before monitored capture.
type ConsentGate struct {
	Camera               bool `json:"camera"`
	Microphone           bool `json:"microphone"`
	BehavioralMonitoring bool `json:"behavioral_monitoring"`
	DataProcessing       bool `json:"data_processing"`
	TermsOfUse           bool `json:"terms_of_use"`
}

// Granted is true only when every approval is given.
func (g ConsentGate) Granted() bool {
	return g.Camera && g.Microphone && g.BehavioralMonitoring && g.DataProcessing && g.TermsOfUse
}

// ConsentRecord is the stored consent of one candidate for one offer.
type ConsentRecord struct {
	OfferID     uuid.UUID   `json:"offer_id"`
	CandidateID int         `json:"candidate_id"`
	Gate        ConsentGate `json:"consents"`
	RecordedAt  time.Time   `json:"recorded_at"`
}

// RecordConsentRequest is the payload for recording the consent gate.
// Pointers make every approval mandatory in the payload while still allowing false.
type RecordConsentRequest struct {
	Camera               *bool `json:"camera" binding:"required"`
	Microphone           *bool `json:"microphone" binding:"required"`
	BehavioralMonitoring *bool `json:"behavioral_monitoring" binding:"required"`
	DataProcessing       *bool `json:"data_processing" binding:"required"`
	TermsOfUse           *bool `json:"terms_of_use" binding:"required"`
}

// Gate converts the request into a ConsentGate.
func (r RecordConsentRequest) Gate() ConsentGate {
	deref := func(b *bool) bool { return b != nil && *b }
	return ConsentGate{
		Camera:               deref(r.Camera),
		Microphone:           deref(r.Microphone),
		BehavioralMonitoring: deref(r.BehavioralMonitoring),
		DataProcessing:       deref(r.DataProcessing),
		TermsOfUse:           deref(r.TermsOfUse),
	}
}

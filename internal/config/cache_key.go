package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// OfferQuestionsKey returns the cache key for an offer's question bank
func (r *CacheKeyStruct) OfferQuestionsKey(offerID uuid.UUID) string {
	return fmt.Sprintf("offer:%s:questions", offerID)
}

// CandidateConsentKey returns the cache key for a candidate's consent record on an offer
func (r *CacheKeyStruct) CandidateConsentKey(offerID uuid.UUID, candidateID int) string {
	return fmt.Sprintf("candidate:%d:offer:%s:consent", candidateID, offerID)
}

// CandidateResultKey returns the cache key for a candidate's frozen result on an offer
func (r *CacheKeyStruct) CandidateResultKey(offerID uuid.UUID, candidateID int) string {
	return fmt.Sprintf("candidate:%d:offer:%s:result", candidateID, offerID)
}

// CandidateMediaLeaseKey returns the lock key held while a session owns the candidate's camera and microphone
func (r *CacheKeyStruct) CandidateMediaLeaseKey(candidateID int) string {
	return fmt.Sprintf("candidate:%d:media_lease", candidateID)
}

// SessionSignalChannel returns the Redis PubSub channel carrying a session's raw signals
func (r *CacheKeyStruct) SessionSignalChannel(offerID uuid.UUID, candidateID int) string {
	return fmt.Sprintf("proctor:offer:%s:candidate:%d:signals", offerID, candidateID)
}

// OfferMonitorChannel returns the Redis PubSub channel name for an offer's live monitor
func (r *CacheKeyStruct) OfferMonitorChannel(offerID uuid.UUID) string {
	return fmt.Sprintf("offer:%s:monitor", offerID)
}

var CacheKey = NewCacheKeyStruct()

package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPayloadKey returns the cache key for an exam's student-safe payload
// (questions with correct answers stripped).
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// SessionTerminatedChannel returns the Pub/Sub channel notified when a
// session reaches a terminal status. The WS stream subscribes to it.
func (r *CacheKeyStruct) SessionTerminatedChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:terminated", sessionID)
}

// ResultsChannel is the Pub/Sub channel the scoring collaborator consumes
// finalized session payloads from.
func (r *CacheKeyStruct) ResultsChannel() string {
	return "exam:results"
}

var CacheKey = NewCacheKeyStruct()

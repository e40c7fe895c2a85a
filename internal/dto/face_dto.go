package dto

// FaceCheckinRequest carries a camera capture for attendance check-in.
// With a biometric user id the capture is verified 1:1 against that
// student's stored encoding; without one the roster of enrolled encodings
// is searched for a match.
type FaceCheckinRequest struct {
	BiometricUserID string `json:"biometric_user_id" validate:"omitempty,max=64"`
	Image           string `json:"image" validate:"required,base64"`
	DeviceID        *uint  `json:"device_id"`
	Timestamp       string `json:"timestamp" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// FaceCheckinResponse reports the verification outcome and, when the face
// matched, what the matching engine decided for the resulting scan.
type FaceCheckinResponse struct {
	Match      bool                  `json:"match"`
	Confidence float64               `json:"confidence"`
	Live       bool                  `json:"live"`
	Student    *StudentResponse      `json:"student,omitempty"`
	Decision   *ScanDecisionResponse `json:"decision,omitempty"`
}

// FaceEnrollResponse reports a completed enrollment.
type FaceEnrollResponse struct {
	StudentID      uint    `json:"student_id"`
	AntiSpoofScore float64 `json:"anti_spoof_score"`
}

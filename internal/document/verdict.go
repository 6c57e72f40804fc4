package document

// Verdict is the final classification of one capture cycle.
type Verdict string

const (
	Valid   Verdict = "VALID"
	Invalid Verdict = "INVALID"
)

// Reason explains which rule produced a verdict. Each reason maps to exactly
// one user-facing message.
type Reason string

const (
	ReasonDocumentValid Reason = "document_valid"
	ReasonFaceDetected  Reason = "face_detected"
	ReasonNoFace        Reason = "no_face"
	ReasonTextNotFound  Reason = "text_not_found"
	ReasonCaptureFailed Reason = "capture_failed"
	ReasonLoadFailed    Reason = "load_failed"
)

// Result pairs a verdict with the reason behind it.
type Result struct {
	Verdict Verdict
	Reason  Reason
}

// Accept builds a VALID result.
func Accept(reason Reason) Result {
	return Result{Verdict: Valid, Reason: reason}
}

// Reject builds an INVALID result.
func Reject(reason Reason) Result {
	return Result{Verdict: Invalid, Reason: reason}
}

// IsValid reports whether the result is VALID.
func (r Result) IsValid() bool {
	return r.Verdict == Valid
}

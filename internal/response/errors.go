package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrBatchTooLarge  ErrCode = "BATCH_TOO_LARGE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrExamNotFound       ErrCode = "EXAM_NOT_FOUND"
	ErrAttemptNotFound    ErrCode = "ATTEMPT_NOT_FOUND"
	ErrQuestionNotFound   ErrCode = "QUESTION_NOT_FOUND"
	ErrAttemptActive      ErrCode = "ATTEMPT_ALREADY_ACTIVE"
	ErrAttemptClosed      ErrCode = "ATTEMPT_CLOSED"
	ErrNoActiveAttempt    ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrScoringUnavailable ErrCode = "SCORING_HANDOFF_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrBatchTooLarge:
		return "Jumlah jawaban dalam satu kiriman melebihi batas."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrExamNotFound:
		return "Ujian tidak ditemukan."
	case ErrAttemptNotFound:
		return "Sesi pengerjaan ujian tidak ditemukan."
	case ErrQuestionNotFound:
		return "Soal tidak ditemukan pada ujian ini."
	case ErrAttemptActive:
		return "Anda masih memiliki sesi pengerjaan aktif untuk ujian ini."
	case ErrAttemptClosed:
		return "Sesi pengerjaan sudah selesai atau waktu telah habis."
	case ErrNoActiveAttempt:
		return "Tidak ada sesi pengerjaan aktif untuk ujian ini."
	case ErrScoringUnavailable:
		return "Ujian telah diselesaikan, tetapi pengiriman ke penilaian gagal. Silakan coba lagi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}

package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrPermissionDenied    ErrCode = "PERMISSION_DENIED"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrRecruiterAccessOnly ErrCode = "RECRUITER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrNoQuestions    ErrCode = "NO_QUESTIONS"
	ErrResultNotFound ErrCode = "RESULT_NOT_FOUND"

	// ─── Proctoring ────────────────────────────────────────────────────
	ErrConsentRequired   ErrCode = "CONSENT_REQUIRED"
	ErrMediaAccessDenied ErrCode = "MEDIA_ACCESS_DENIED"
	ErrMediaDeviceBusy   ErrCode = "MEDIA_DEVICE_BUSY"
	ErrMediaUnavailable  ErrCode = "MEDIA_UNAVAILABLE"
	ErrAnswerRequired    ErrCode = "ANSWER_REQUIRED"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrOptionOutOfRange  ErrCode = "OPTION_OUT_OF_RANGE"
	ErrNotInProgress     ErrCode = "SESSION_NOT_IN_PROGRESS"
	ErrAlreadyStarted    ErrCode = "SESSION_ALREADY_STARTED"
	ErrStartPending      ErrCode = "SESSION_START_PENDING"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrSessionActive     ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrTestAlreadyDone   ErrCode = "TEST_ALREADY_COMPLETED"

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
		return "Jeton d'authentification requis."
	case ErrTokenInvalid:
		return "Jeton d'authentification invalide ou expiré."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Vous n'avez pas accès à cette ressource."
	case ErrPermissionDenied:
		return "Permission refusée."
	case ErrCandidateAccessOnly:
		return "Cette ressource est réservée aux candidats."
	case ErrRecruiterAccessOnly:
		return "Cette ressource est réservée aux recruteurs."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "La validation a échoué. Vérifiez les champs saisis."
	case ErrInvalidID:
		return "Format d'identifiant invalide."
	case ErrInvalidPayload:
		return "Contenu de la requête invalide."
	case ErrUnknownAction:
		return "Action inconnue."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Ressource introuvable."
	case ErrNoQuestions:
		return "Aucun questionnaire n'est associé à cette offre."
	case ErrResultNotFound:
		return "Aucun résultat n'a encore été enregistré pour ce test."

	// ─── Proctoring ────────────────────────────────────────────────────
	case ErrConsentRequired:
		return "Vous devez accepter toutes les conditions avant de commencer le test."
	case ErrMediaAccessDenied:
		return "L'accès à la caméra et au microphone a été refusé."
	case ErrMediaDeviceBusy:
		return "La caméra et le microphone sont déjà utilisés par une autre session de test."
	case ErrMediaUnavailable:
		return "Caméra ou microphone indisponible."
	case ErrAnswerRequired:
		return "Veuillez répondre à la question avant de passer à la suivante."
	case ErrUnknownQuestion:
		return "Cette question ne fait pas partie du test."
	case ErrOptionOutOfRange:
		return "Cette réponse n'existe pas pour la question."
	case ErrNotInProgress:
		return "Le test n'est pas en cours."
	case ErrAlreadyStarted:
		return "Le test a déjà commencé."
	case ErrStartPending:
		return "Le démarrage du test est déjà en cours."
	case ErrSessionClosed:
		return "Cette session de test est fermée."
	case ErrSessionActive:
		return "Une session de test est déjà ouverte pour ce candidat."
	case ErrSessionNotFound:
		return "Aucune session de test ouverte."
	case ErrTestAlreadyDone:
		return "Vous avez déjà passé ce test."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Trop de requêtes. Réessayez plus tard."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Une erreur interne est survenue."
	default:
		return "Une erreur inattendue est survenue."
	}
}

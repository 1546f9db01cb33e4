package call

import (
	"database/sql"

	"go.uber.org/zap"

	"pizzacall/internal/call/controller"
	"pizzacall/internal/config"
	"pizzacall/internal/script"
	"pizzacall/internal/telephony"
	tenantrepo "pizzacall/internal/tenant/repository"
)

func NewModule(db *sql.DB, cfg *config.Config, s *script.Script, logger *zap.Logger) *controller.IncomingCallController {
	tenantRepo := tenantrepo.NewMySQLTenantRepository(db)

	var signature controller.SignatureChecker
	if cfg.Twilio.ValidateSignatures {
		signature = telephony.NewSignatureValidator(cfg.Twilio.AuthToken)
	}

	return controller.NewIncomingCallController(tenantRepo, signature, controller.Options{
		StreamURL: cfg.Twilio.StreamURL,
		Apology:   s.Apologies.Unavailable,
		SayVoice:  s.SayVoice,
		Language:  s.Language,
	}, logger)
}

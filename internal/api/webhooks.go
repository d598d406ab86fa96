package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// snsEnvelope is the SNS wrapper SES delivers notifications in.
type snsEnvelope struct {
	Type         string `json:"Type"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
	TopicArn     string `json:"TopicArn"`
}

type sesRecipient struct {
	EmailAddress string `json:"emailAddress"`
}

type sesBounce struct {
	BounceType        string         `json:"bounceType"`
	BouncedRecipients []sesRecipient `json:"bouncedRecipients"`
	Timestamp         time.Time      `json:"timestamp"`
}

type sesComplaint struct {
	ComplainedRecipients []sesRecipient `json:"complainedRecipients"`
	Timestamp            time.Time      `json:"timestamp"`
}

type sesNotification struct {
	NotificationType string        `json:"notificationType"`
	Bounce           *sesBounce    `json:"bounce"`
	Complaint        *sesComplaint `json:"complaint"`
}

// handleSESWebhook ingests SES bounce/complaint notifications, either
// SNS-wrapped or raw. Unknown notification types are acknowledged and
// ignored so SES does not retry them forever.
func (s *Server) handleSESWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var envelope snsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	switch envelope.Type {
	case "SubscriptionConfirmation":
		logger.Info("SNS subscription confirmation received", "topic", envelope.TopicArn, "url", envelope.SubscribeURL)
		respondJSON(w, http.StatusOK, map[string]string{"status": "confirmation logged"})
		return
	case "Notification":
		body = []byte(envelope.Message)
	}

	var notification sesNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		respondError(w, http.StatusBadRequest, "invalid notification")
		return
	}

	processed := 0
	switch notification.NotificationType {
	case "Bounce":
		if notification.Bounce == nil {
			respondError(w, http.StatusBadRequest, "bounce notification without bounce block")
			return
		}
		bounceType := domain.BounceTransient
		if notification.Bounce.BounceType == "Permanent" {
			bounceType = domain.BouncePermanent
		}
		for _, rcpt := range notification.Bounce.BouncedRecipients {
			ev := domain.BounceEvent{
				Email:     rcpt.EmailAddress,
				Type:      bounceType,
				Timestamp: notification.Bounce.Timestamp,
			}
			if err := s.feedback.HandleBounce(r.Context(), ev); err != nil {
				logger.Error("bounce processing failed", "email", rcpt.EmailAddress, "error", err.Error())
				respondError(w, http.StatusInternalServerError, "bounce processing failed")
				return
			}
			processed++
		}
	case "Complaint":
		if notification.Complaint == nil {
			respondError(w, http.StatusBadRequest, "complaint notification without complaint block")
			return
		}
		for _, rcpt := range notification.Complaint.ComplainedRecipients {
			ev := domain.ComplaintEvent{
				Email:     rcpt.EmailAddress,
				Timestamp: notification.Complaint.Timestamp,
			}
			if err := s.feedback.HandleComplaint(r.Context(), ev); err != nil {
				logger.Error("complaint processing failed", "email", rcpt.EmailAddress, "error", err.Error())
				respondError(w, http.StatusInternalServerError, "complaint processing failed")
				return
			}
			processed++
		}
	default:
		logger.Debug("ignoring notification", "type", notification.NotificationType)
	}

	respondJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// TopicPrefix is prepended to the user id; clients subscribe to their own topic.
const TopicPrefix = "progression-"

type FCMService struct {
	client *messaging.Client
}

// NewFCMService first tries base64 credentials from FCM_SERVICE_ACCOUNT_JSON, then
// the service account file at localFilePath.
func NewFCMService(ctx context.Context, localFilePath string) (*FCMService, error) {
	var opt option.ClientOption

	if encoded := os.Getenv("FCM_SERVICE_ACCOUNT_JSON"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		logrus.Info("FCM: using credentials from FCM_SERVICE_ACCOUNT_JSON")
	} else {
		if _, err := os.Stat(localFilePath); err != nil {
			return nil, fmt.Errorf("firebase credentials file %s: %w", localFilePath, err)
		}
		opt = option.WithCredentialsFile(localFilePath)
		logrus.WithField("file", localFilePath).Info("FCM: using credentials file")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// Notify sends one message to the user's progression topic.
func (s *FCMService) Notify(ctx context.Context, u ProgressUpdate) error {
	if u.Empty() {
		return nil
	}

	message := &messaging.Message{
		Topic: TopicPrefix + u.UserID.String(),
		Notification: &messaging.Notification{
			Title: u.Title(),
			Body:  u.Body(),
		},
		Data: u.Data(),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}

	id, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("fcm send to %s: %w", message.Topic, err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":    u.UserID,
		"message_id": id,
	}).Debug("FCM: progress notification sent")
	return nil
}

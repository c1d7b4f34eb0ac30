package services

import (
	"context"
	"fmt"

	"hospitalrecords/internal/models"
	"hospitalrecords/internal/utils"
)

type smsClient interface {
	SendSMS(ctx context.Context, to, text string) (*utils.SendSMSResponse, error)
}

type SMSNotifier struct {
	client smsClient
}

func NewSMSNotifier(client smsClient) *SMSNotifier {
	return &SMSNotifier{client: client}
}

func (n *SMSNotifier) Channel() string { return "sms" }

func (n *SMSNotifier) Address(a *models.Account) string { return a.Phone }

func (n *SMSNotifier) SendCode(ctx context.Context, address, code string) error {
	if _, err := n.client.SendSMS(ctx, address, codeMessage(code)); err != nil {
		return fmt.Errorf("%w: sms: %v", ErrNotificationDelivery, err)
	}
	return nil
}

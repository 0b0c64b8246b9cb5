package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Megho-git/ParkEase/internal/token"
	"github.com/mailersend/mailersend-go"
	"go.uber.org/zap"
)

// emailClient is the part of the MailerSend email service this package uses.
type emailClient interface {
	NewMessage() *mailersend.Message
	Send(ctx context.Context, message *mailersend.Message) (*mailersend.Response, error)
}

type MailerSendNotifier struct {
	client    emailClient
	fromEmail string
	fromName  string
	location  *time.Location
	log       *zap.Logger
}

func NewMailerSendNotifier(apiKey, fromEmail, fromName string, loc *time.Location, log *zap.Logger) *MailerSendNotifier {
	ms := mailersend.NewMailersend(apiKey)
	return &MailerSendNotifier{client: ms.Email, fromEmail: fromEmail, fromName: fromName, location: loc, log: log}
}

func (n *MailerSendNotifier) SendConfirmation(ctx context.Context, c Confirmation) (bool, string) {
	if c.Recipient == "" {
		return false, "no recipient address"
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	message := n.client.NewMessage()
	message.SetFrom(mailersend.From{Name: n.fromName, Email: n.fromEmail})
	message.SetRecipients([]mailersend.Recipient{{Name: c.RecipientName, Email: c.Recipient}})
	message.SetSubject(fmt.Sprintf("Parking confirmed at %s", c.LotName))
	message.SetText(n.body(c))

	if c.Code != "" {
		png, err := token.QRCodePNG([]byte(c.Code))
		if err != nil {
			n.log.Warn("qr render failed, sending without attachment", zap.Error(err), zap.Int("reservation_id", c.ReservationID))
		} else {
			message.AddAttachment(mailersend.Attachment{
				Filename: fmt.Sprintf("reservation-%d.png", c.ReservationID),
				Content:  base64.StdEncoding.EncodeToString(png),
			})
		}
	}

	res, err := n.client.Send(ctx, message)
	if err != nil {
		n.log.Error("confirmation email failed", zap.Error(err), zap.Int("reservation_id", c.ReservationID))
		return false, "confirmation email could not be sent"
	}
	msgID := ""
	if res != nil && res.Response != nil {
		msgID = res.Header.Get("X-Message-Id")
	}
	n.log.Info("confirmation email sent", zap.Int("reservation_id", c.ReservationID), zap.String("message_id", msgID))
	return true, "confirmation email sent"
}

func (n *MailerSendNotifier) body(c Confirmation) string {
	loc := n.location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("Hello %s,\n\nReservation #%d is confirmed.\nLot: %s\nAddress: %s, %s\nSpot: %d\nVehicle: %s\nArrival: %s\nRate: %.2f per hour\n\nShow the attached QR code at the exit.\n",
		c.RecipientName, c.ReservationID, c.LotName, c.Address, c.PinCode, c.SpotID, c.VehicleNumber,
		c.ScheduledTime.In(loc).Format("02 Jan 2006 15:04"), c.PricePerHour)
}

package notifications

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/brickfolio/investment-service/internal/utils"
)

const investorEmailHTML = `<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333333; background-color: #f4f4f4; margin: 0; padding: 0; }
.container { padding: 20px; max-width: 600px; margin: 20px auto; background-color: #ffffff; border: 1px solid #dddddd; border-radius: 8px; }
.header { font-size: 22px; font-weight: bold; color: #2d6a4f; margin-bottom: 15px; }
.footer { margin-top: 20px; font-size: 12px; color: #777777; text-align: center; }
p { margin-bottom: 15px; }
</style>
</head>
<body>
<div class="container">
<p class="header">%s</p>
<p>Amount: <strong>$%.2f</strong></p>
<p>%s</p>
<div class="footer">The Brickfolio Team</div>
</div>
</body>
</html>`

var emailSubjects = map[EventType]string{
	EventInvestmentCompleted: "Your Brickfolio investment is confirmed",
	EventWithdrawalCompleted: "Your Brickfolio withdrawal has been sent",
	EventWithdrawalFailed:    "Action Required: Your Brickfolio Withdrawal Failed",
	EventRentalIncomePaid:    "Rental income has been added to your balance",
}

// SendGridNotifier emails investors about completed operations.
type SendGridNotifier struct {
	client      *sendgrid.Client
	fromName    string
	fromEmail   string
	sandboxMode bool
}

func NewSendGridNotifier(apiKey, fromName, fromEmail string, sandboxMode bool) *SendGridNotifier {
	return &SendGridNotifier{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromEmail:   fromEmail,
		sandboxMode: sandboxMode,
	}
}

func (n *SendGridNotifier) Notify(ctx context.Context, ev Event) {
	if ev.Email == "" {
		utils.Logger.Debugf("Skipping %s notification for user %s: no email on file", ev.Type, ev.UserID)
		return
	}

	subject, ok := emailSubjects[ev.Type]
	if !ok {
		subject = "Brickfolio account update"
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", ev.Email)
	amount := float64(ev.AmountCents) / 100.0

	plain := fmt.Sprintf("%s\n\nAmount: $%.2f\n%s", subject, amount, ev.Detail)
	html := fmt.Sprintf(investorEmailHTML, subject, amount, ev.Detail)

	msg := mail.NewSingleEmail(from, subject, to, plain, html)
	if n.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	if _, err := n.client.Send(msg); err != nil {
		utils.Logger.WithError(err).Warnf("Failed to send %s notification to user %s", ev.Type, ev.UserID)
	}
}

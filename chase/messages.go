package chase

import "fmt"

// Message is the rendered follow-up handed to the Messenger.
type Message struct {
	Subject string
	Body    string
	Final   bool
}

// BuildMessage renders the follow-up for a given attempt. The attempt that
// reaches the ceiling carries the final-warning wording so the client knows
// the case closes without a reply.
func BuildMessage(clientName, reference string, attempt, maxAttempts int) Message {
	if attempt >= maxAttempts {
		return Message{
			Subject: fmt.Sprintf("Final reminder: your mortgage recommendation (%s)", reference),
			Body: fmt.Sprintf(
				"Dear %s,\n\n"+
					"We have not yet heard back on the mortgage recommendation we sent for case %s. "+
					"This is our final reminder: if we do not receive a response, the case will be "+
					"closed and you would need to start a new enquiry to proceed.\n\n"+
					"Please reply to let us know whether you would like to go ahead.\n\n"+
					"Kind regards,\nYour advice team",
				clientName, reference,
			),
			Final: true,
		}
	}

	return Message{
		Subject: fmt.Sprintf("Reminder: your mortgage recommendation (%s)", reference),
		Body: fmt.Sprintf(
			"Dear %s,\n\n"+
				"Just a reminder that the mortgage recommendation for case %s is waiting for your "+
				"decision. Please reply to let us know whether you would like to proceed, or if "+
				"you have any questions about the options we set out.\n\n"+
				"Kind regards,\nYour advice team",
			clientName, reference,
		),
	}
}

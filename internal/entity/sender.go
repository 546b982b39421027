package entity

// Sender is the verified originator of transfers.
type Sender struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Language string `json:"-"`
}

type Recipient struct {
	Mail string `json:"mail"`
}

type Recipients struct {
	To  []Recipient `json:"to"`
	Cc  []Recipient `json:"cc"`
	Bcc []Recipient `json:"bcc"`
}

func ToRecipients(emails []string) []Recipient {
	recipients := make([]Recipient, 0, len(emails))
	for _, email := range emails {
		recipients = append(recipients, Recipient{Mail: email})
	}

	return recipients
}

func NewRecipients(to, cc, bcc []string) Recipients {
	return Recipients{
		To:  ToRecipients(to),
		Cc:  ToRecipients(cc),
		Bcc: ToRecipients(bcc),
	}
}

// Emails returns to, cc and bcc addresses in that order.
func (r Recipients) Emails() []string {
	emails := make([]string, 0, len(r.To)+len(r.Cc)+len(r.Bcc))
	for _, list := range [][]Recipient{r.To, r.Cc, r.Bcc} {
		for _, recipient := range list {
			emails = append(emails, recipient.Mail)
		}
	}

	return emails
}

func (r Recipients) Len() int {
	return len(r.To) + len(r.Cc) + len(r.Bcc)
}

// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"inkwell/api/internal/store"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	EnableTLS bool
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-inkwell"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// ConflictDigestData holds data for the critical conflict digest email
type ConflictDigestData struct {
	AppName      string
	UserName     string
	ProjectTitle string
	Conflicts    []DigestConflict
}

// DigestConflict is one conflict row in the digest
type DigestConflict struct {
	EntityName   string
	PropertyName string
	ValueA       string
	ValueB       string
	Severity     string
}

// SendConflictDigest notifies a project owner about newly detected critical
// contradictions.
func (s *Service) SendConflictDigest(to, userName, projectTitle string, conflicts []store.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	data := ConflictDigestData{
		AppName:      "Inkwell",
		UserName:     userName,
		ProjectTitle: projectTitle,
	}
	for _, c := range conflicts {
		data.Conflicts = append(data.Conflicts, DigestConflict{
			EntityName:   c.EntityName,
			PropertyName: c.PropertyName,
			ValueA:       c.SnapshotAValue,
			ValueB:       c.SnapshotBValue,
			Severity:     c.Severity,
		})
	}

	subject := fmt.Sprintf("%d consistency issue(s) found in %q", len(conflicts), projectTitle)
	html, err := renderTemplate(conflictDigestTemplate, data)
	if err != nil {
		return fmt.Errorf("render conflict digest template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const conflictDigestTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Consistency issues in {{.ProjectTitle}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #b3261e; padding-bottom: 10px; margin-bottom: 20px; }
        table { border-collapse: collapse; width: 100%; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; }
        .critical { color: #b3261e; font-weight: bold; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    <p>The latest analysis of <strong>{{.ProjectTitle}}</strong> found contradictions between chapters:</p>

    <table>
        <tr><th>Entity</th><th>Property</th><th>First value</th><th>Later value</th><th>Severity</th></tr>
        {{range .Conflicts}}
        <tr>
            <td>{{.EntityName}}</td>
            <td>{{.PropertyName}}</td>
            <td>{{.ValueA}}</td>
            <td>{{.ValueB}}</td>
            <td class="{{.Severity}}">{{.Severity}}</td>
        </tr>
        {{end}}
    </table>

    <p>Open the project's consistency view to resolve or dismiss each finding.</p>

    <div class="footer">
        <p>You receive these digests because critical contradictions were detected in your project.</p>
    </div>
</body>
</html>`

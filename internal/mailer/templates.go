package mailer

import (
	"bytes"
	htmltmpl "html/template"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

type registrationData struct {
	AppName  string
	Name     string
	Email    string
	Password string
}

var registrationHTML = htmltmpl.Must(htmltmpl.New("registration.gohtml").Parse(`<h1>Hi {{.Name}},</h1>
<p>Welcome to the {{.AppName}} platform! An account has been created for you.</p>
<p>You can log in using the following credentials:</p>
<ul>
  <li><strong>Email:</strong> {{.Email}}</li>
  <li><strong>Password:</strong> {{.Password}}</li>
</ul>
<p>It is highly recommended that you change your password after your first login.</p>
<p>Best regards,<br>The {{.AppName}} Team</p>
`))

var registrationText = texttmpl.Must(texttmpl.New("registration.txt").Parse(`Hi {{.Name}},

Welcome to the {{.AppName}} platform! An account has been created for you.

Email: {{.Email}}
Password: {{.Password}}

It is highly recommended that you change your password after your first login.

The {{.AppName}} Team
`))

// Registration renders the welcome email carrying a new user's credentials.
func Registration(appName, to, name, password string) (Email, error) {
	data := registrationData{AppName: appName, Name: name, Email: to, Password: password}

	var html, text bytes.Buffer
	if err := registrationHTML.Execute(&html, data); err != nil {
		return Email{}, errors.Wrap(err, "rendering registration html")
	}
	if err := registrationText.Execute(&text, data); err != nil {
		return Email{}, errors.Wrap(err, "rendering registration text")
	}
	return Email{
		To:      to,
		ToName:  name,
		Subject: "Welcome to " + appName + "!",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

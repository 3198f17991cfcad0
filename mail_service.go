package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/textproto"

	"github.com/spf13/viper"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SendMail delivers a multipart/alternative message (plain text plus HTML)
// to each recipient through the configured SMTP relay.
func SendMail(recipients []string, subject, textBody, htmlBody string) error {
	from := viper.GetString("smtp.from_email")
	host := viper.GetString("smtp.host")
	port := viper.GetString("smtp.port")
	username := viper.GetString("smtp.username")
	password := viper.GetString("smtp.password")

	auth := sasl.NewLoginClient(username, password)

	var err error
	for _, recipient := range recipients {
		msg, buildErr := buildMimeMessage(from, recipient, subject, textBody, htmlBody)
		if buildErr != nil {
			return buildErr
		}

		to := []string{recipient}
		reader := bytes.NewReader(msg)
		err = smtp.SendMail(host+":"+port, auth, from, to, reader)
		if err != nil {
			slog.Warn("failed to send email", "recipient", recipient, "error", err)
		}
	}

	return err
}

func buildMimeMessage(from, to, subject, textBody, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n",
		from, to, subject, writer.Boundary())

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": []string{"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(textBody)); err != nil {
		return nil, err
	}

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": []string{"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

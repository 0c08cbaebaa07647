package validator

import (
	"sort"
	"strings"

	"github.com/alphachat/alphachat-go/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(v))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return strings.Join(parts, "; ")
}

const maxMessageLength = 4000

func ValidateMessage(content string, kind domain.MessageKind, codeLanguage string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(content) == "" {
		errs.Add("content", "Message content is required")
	} else if len(content) > maxMessageLength {
		errs.Add("content", "Message is too long")
	}

	if !kind.Valid() {
		errs.Add("messageType", "Unknown message type")
	}

	if kind == domain.KindCode && strings.TrimSpace(codeLanguage) == "" {
		errs.Add("codeLanguage", "Code language is required for code messages")
	}

	return errs
}

func ValidateStatus(status string) ValidationErrors {
	errs := make(ValidationErrors)

	switch status {
	case domain.StatusOnline, domain.StatusOffline, domain.StatusAway, domain.StatusBusy:
	default:
		errs.Add("status", "Status must be online, offline, away or busy")
	}

	return errs
}

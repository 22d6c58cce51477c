package main

import (
	"errors"
	"strings"

	"github.com/eunoia-wellness/companion/internal/model"
)

const reportUsage = "usage: /report <low|medium|high|critical> <what is going on>"

// parseReport splits the arguments of /report into a level and a note.
func parseReport(arg string) (model.RiskLevel, string, error) {
	level, note, _ := strings.Cut(strings.TrimSpace(arg), " ")
	l := model.RiskLevel(strings.ToLower(level))
	note = strings.TrimSpace(note)
	if !l.Valid() || note == "" {
		return "", "", errors.New(reportUsage)
	}
	return l, note, nil
}

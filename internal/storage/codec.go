package storage

import (
	"encoding/json"
	"fmt"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

// EncodeRewardRules serializes rules for a JSON text column.
func EncodeRewardRules(rules models.RewardRules) (string, error) {
	if rules == nil {
		rules = models.RewardRules{}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("encode reward rules: %w", err)
	}
	return string(raw), nil
}

// DecodeRewardRules parses a JSON text column into rules.
func DecodeRewardRules(raw string) (models.RewardRules, error) {
	rules := models.RewardRules{}
	if raw == "" {
		return rules, nil
	}
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("decode reward rules: %w", err)
	}
	return rules, nil
}

// EncodeEvidence serializes evidence; nil evidence maps to a NULL column.
func EncodeEvidence(ev *models.Evidence) (*string, error) {
	if ev == nil {
		return nil, nil
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode evidence: %w", err)
	}
	s := string(raw)
	return &s, nil
}

// DecodeEvidence parses a nullable JSON text column.
func DecodeEvidence(raw *string) (*models.Evidence, error) {
	if raw == nil || *raw == "" || *raw == "null" {
		return nil, nil
	}
	var ev models.Evidence
	if err := json.Unmarshal([]byte(*raw), &ev); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	if ev.URLs == nil {
		ev.URLs = []string{}
	}
	return &ev, nil
}

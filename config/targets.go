package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// TargetsFile is the on-disk shape of the target list.
type TargetsFile struct {
	Targets []models.TargetEntity `json:"targets"`
}

// LoadTargets reads the JSON5 target list at path. A sibling
// "<name>.local.<ext>" file, when present, is merged in by target id: a local
// entry overrides the non-zero fields of the base entry with the same id, and
// entries with new ids are appended.
func LoadTargets(path string) ([]models.TargetEntity, error) {
	base, err := readTargets(path)
	if err != nil {
		return nil, err
	}

	localPath := localVariant(path)
	if _, statErr := os.Stat(localPath); statErr == nil {
		override, err := readTargets(localPath)
		if err != nil {
			return nil, err
		}
		if err := mergeTargets(&base, override); err != nil {
			return nil, fmt.Errorf("merge %s: %w", localPath, err)
		}
		slog.Info("merged local target overrides", slog.String("local", localPath))
	}

	if err := ValidateTargets(base.Targets); err != nil {
		return nil, err
	}
	return base.Targets, nil
}

func mergeTargets(base *TargetsFile, local TargetsFile) error {
	index := make(map[string]int, len(base.Targets))
	for i, t := range base.Targets {
		index[t.ID] = i
	}
	for _, t := range local.Targets {
		i, ok := index[t.ID]
		if !ok {
			index[t.ID] = len(base.Targets)
			base.Targets = append(base.Targets, t)
			continue
		}
		if err := mergo.Merge(&base.Targets[i], t, mergo.WithOverride); err != nil {
			return fmt.Errorf("target %q: %w", t.ID, err)
		}
	}
	return nil
}

// ValidateTargets rejects targets that cannot drive a batch run.
func ValidateTargets(targets []models.TargetEntity) error {
	seen := make(map[string]struct{}, len(targets))
	for i, t := range targets {
		if strings.TrimSpace(t.DisplayName) == "" {
			return fmt.Errorf("target %d missing display name", i)
		}
		if t.ID == "" {
			return fmt.Errorf("target %q missing id", t.DisplayName)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("duplicate target id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		if len(t.SizeBrackets) == 0 {
			return fmt.Errorf("target %q has no size brackets", t.DisplayName)
		}
		for _, size := range t.SizeBrackets {
			if size <= 0 {
				return fmt.Errorf("target %q has non-positive size bracket %d", t.DisplayName, size)
			}
		}
	}
	return nil
}

func readTargets(path string) (TargetsFile, error) {
	var out TargetsFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read targets: %w", err)
	}
	if err := json5.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("parse targets %s: %w", path, err)
	}
	return out, nil
}

func localVariant(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+".local"+ext)
}

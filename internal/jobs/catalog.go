package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LoadFile reads a catalog file. Both a bare JSON array of postings and an object
// with an "items" array are accepted. A missing file is an empty catalog.
func LoadFile(path string) (*Postings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Postings{}, nil
		}
		return nil, fmt.Errorf("reading catalog %q: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Postings{}, nil
	}

	postings := &Postings{}
	if data[0] == '[' {
		err = json.Unmarshal(data, &postings.Items)
	} else {
		err = json.Unmarshal(data, postings)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %q: %w", path, err)
	}

	if err := postings.Normalize(); err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}

	return postings, nil
}

// Normalize assigns missing IDs, validates required fields and job types and drops
// nil entries.
func (p *Postings) Normalize() error {
	items := make([]*JobPosting, 0, len(p.Items))
	for idx, posting := range p.Items {
		if posting == nil {
			continue
		}

		if err := posting.checkRequired(); err != nil {
			return fmt.Errorf("posting %d: %w", idx, err)
		}

		jobType, err := ParseJobType(string(posting.JobType))
		if err != nil {
			return fmt.Errorf("posting %q: %w", posting.Title, err)
		}
		posting.JobType = jobType

		if strings.TrimSpace(posting.ID) == "" {
			posting.ID = uuid.NewString()
		}

		items = append(items, posting)
	}
	p.Items = items
	return nil
}

// Add validates a new posting, assigns an ID and appends it to the catalog.
func (p *Postings) Add(posting *JobPosting) (*JobPosting, error) {
	if posting == nil {
		return nil, fmt.Errorf("%w: posting is required", ErrInvalidInput)
	}

	if err := posting.checkRequired(); err != nil {
		return nil, err
	}

	jobType, err := ParseJobType(string(posting.JobType))
	if err != nil {
		return nil, err
	}
	posting.JobType = jobType

	if posting.ID == "" {
		posting.ID = uuid.NewString()
	} else if p.FindByID(posting.ID) != nil {
		return nil, fmt.Errorf("%w: posting %s already exists", ErrInvalidInput, posting.ID)
	}

	p.Items = append(p.Items, posting)
	return posting, nil
}

// checkRequired trims the head fields and fails when one of them is empty.
func (jp *JobPosting) checkRequired() error {
	jp.Title = strings.TrimSpace(jp.Title)
	jp.Company = strings.TrimSpace(jp.Company)
	jp.Location = strings.TrimSpace(jp.Location)

	switch {
	case jp.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case jp.Company == "":
		return fmt.Errorf("%w: company is required", ErrInvalidInput)
	case jp.Location == "":
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	return nil
}

// Delete removes a posting by ID and reports whether it existed.
func (p *Postings) Delete(id string) bool {
	return len(p.Exclude(PostingIDField, []string{id})) > 0
}

func (p *Postings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(p.Items)
}

func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}

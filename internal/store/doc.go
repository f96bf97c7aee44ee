package store

import (
	"encoding/json"
	"regexp"
	"time"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

// document is the stored form: top-level keys with their raw JSON values, so
// keys this version does not model survive a merge untouched.
type document map[string]json.RawMessage

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID rejects ids that could escape the data directory.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return apperrors.Newf(apperrors.InvalidArgument, "invalid conversation id %q", id)
	}
	return nil
}

func encodeConversation(c *Conversation) (document, error) {
	if c.Sentences == nil {
		c.Sentences = []Sentence{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "encode conversation")
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "split conversation")
	}
	return doc, nil
}

func decodeDocument(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "decode document")
	}
	return doc, nil
}

func (d document) conversation() (*Conversation, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "join document")
	}
	var c Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "decode conversation")
	}
	if c.Sentences == nil {
		c.Sentences = []Sentence{}
	}
	return &c, nil
}

// apply overwrites top-level keys from f and stamps updated_at.
func (d document) apply(f Fields, now time.Time) error {
	for k, v := range f {
		raw, err := json.Marshal(v)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.StoreFailed, "encode field %s", k)
		}
		d[k] = raw
	}
	stamp, _ := json.Marshal(now.UTC())
	d[FieldUpdatedAt] = stamp
	return nil
}

func (d document) bytes() ([]byte, error) {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "encode document")
	}
	return raw, nil
}

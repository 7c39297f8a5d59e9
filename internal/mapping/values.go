package mapping

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/store"
	"wc-salesforce-sync/internal/value"
)

// Email validation modes.
const (
	// EmailLegacy drops values that ARE valid emails and keeps everything
	// else. The check looks inverted, but existing mappings rely on it.
	EmailLegacy = "legacy"
	EmailStrict = "strict"
)

const (
	dateLayout     = "2006-01-02"
	currentDateKey = "current"
)

var datePattern = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])-(0[1-9]|[1-2][0-9]|3[0-1])$`)

var numericTypes = map[string]bool{
	"double":   true,
	"currency": true,
	"number":   true,
	"percent":  true,
	"int":      true,
	"integer":  true,
}

// Mapper turns field mappings and a source record into a Salesforce payload.
type Mapper struct {
	emailMode string
	validate  *validator.Validate
	now       func() time.Time
}

func NewMapper(emailMode string) *Mapper {
	if emailMode != EmailStrict {
		emailMode = EmailLegacy
	}
	return &Mapper{
		emailMode: emailMode,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Resolve builds the destination field -> value map for record. Values that
// fail their type check or are empty are left out; a destination fed by more
// than one mapping receives the values joined with ", ".
func (m *Mapper) Resolve(mappings []store.FieldMapping, record SourceRecord) map[string]interface{} {
	values := make(map[string]interface{})

	for _, fm := range mappings {
		var v interface{}
		switch fm.Source {
		case store.SourceStoreField:
			v = m.storeValue(fm, record.Get(fm.From))
		case store.SourcePicklist, store.SourceCustom:
			if fm.Type == "date" && fm.Value == currentDateKey {
				v = m.today()
			} else {
				v = fm.Value
			}
		default:
			logger.Log.Debug("Skipping mapping with unknown source", zap.String("source", fm.Source), zap.String("to", fm.To))
		}

		if value.IsEmpty(v) {
			continue
		}
		if existing, ok := values[fm.To]; ok {
			values[fm.To] = value.String(existing) + ", " + value.String(v)
		} else {
			values[fm.To] = v
		}
	}
	return values
}

func (m *Mapper) storeValue(fm store.FieldMapping, v interface{}) interface{} {
	switch {
	case fm.Type == "boolean":
		if _, ok := v.(bool); !ok {
			return m.dropped(fm, v)
		}
	case numericTypes[fm.Type]:
		if !value.IsNumeric(v) {
			return m.dropped(fm, v)
		}
	case fm.Type == "email":
		return m.email(fm, v)
	case fm.Type == "date":
		return m.date(v)
	default:
		if _, ok := v.(string); !ok {
			return m.dropped(fm, v)
		}
	}
	return v
}

// email keeps the inverted check of the legacy plugin unless strict mode is
// configured.
func (m *Mapper) email(fm store.FieldMapping, v interface{}) interface{} {
	valid := m.isEmail(v)
	if m.emailMode == EmailStrict {
		if !valid {
			return m.dropped(fm, v)
		}
		return v
	}
	if valid {
		return m.dropped(fm, v)
	}
	return v
}

func (m *Mapper) isEmail(v interface{}) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	return m.validate.Var(s, "email") == nil
}

// date keeps YYYY-MM-DD values, cuts a time part off datetimes and falls
// back to today for anything else.
func (m *Mapper) date(v interface{}) string {
	s := value.String(v)
	if datePattern.MatchString(s) {
		return s
	}
	if head, _, found := strings.Cut(s, " "); found && datePattern.MatchString(head) {
		return head
	}
	return m.today()
}

func (m *Mapper) today() string {
	return m.now().Format(dateLayout)
}

func (m *Mapper) dropped(fm store.FieldMapping, v interface{}) interface{} {
	logger.Log.Debug("Dropping value that failed type check",
		zap.String("from", fm.From),
		zap.String("to", fm.To),
		zap.String("type", fm.Type),
		zap.Any("value", v),
	)
	return nil
}

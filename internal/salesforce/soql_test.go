package salesforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeSOQL(t *testing.T) {
	assert.Equal(t, `O\'Reilly`, EscapeSOQL("O'Reilly"))
	assert.Equal(t, `a\\b`, EscapeSOQL(`a\b`))
	assert.Equal(t, `line\nbreak`, EscapeSOQL("line\nbreak"))
	assert.Equal(t, "plain-text & more", EscapeSOQL("plain-text & more"))
}

func TestLookupQuery(t *testing.T) {
	q, ok := lookupQuery("Contact", map[string]interface{}{
		"LastName":       "O'Brien",
		"Email":          "a@b.com",
		"HasOptedOut__c": true,
		"Active__c":      "false",
		"Amount__c":      "19.99",
		"Count__c":       3,
	})
	assert.True(t, ok)
	assert.Equal(t, `SELECT Id FROM Contact WHERE Amount__c=19.99 AND Count__c=3 AND Email='a@b.com' AND LastName='O\'Brien'`, q)

	_, ok = lookupQuery("Contact", map[string]interface{}{"Flag": true})
	assert.False(t, ok)
}

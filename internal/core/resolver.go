package core

import (
	"regexp"
	"strings"
)

var recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExtractRecordID parses the referenced record id out of a reference string.
// References are usually record URLs
// (".../apps/<app>/records/<24 hex chars>") but a bare id is accepted too.
// Anything that does not end in a plain id segment yields ok=false.
func ExtractRecordID(ref string) (string, bool) {
	s := strings.TrimSpace(ref)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if s == "" || !recordIDPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// RecordURL builds the reference a record store expects for recordID.
func RecordURL(baseURL, appID, recordID string) string {
	return strings.TrimRight(baseURL, "/") + "/apps/" + appID + "/records/" + recordID
}

// CategoryLookup maps category ids to records. The zero value resolves
// everything to the uncategorized bucket.
type CategoryLookup struct {
	byID     map[string]CategoryRecord
	fallback string
}

// NewCategoryLookup indexes categories by id. Ids are expected to be unique;
// when they are not, the later record wins.
func NewCategoryLookup(categories []CategoryRecord) CategoryLookup {
	byID := make(map[string]CategoryRecord, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return CategoryLookup{byID: byID, fallback: UncategorizedName}
}

// WithFallback returns a copy that labels the uncategorized bucket name.
func (l CategoryLookup) WithFallback(name string) CategoryLookup {
	if strings.TrimSpace(name) != "" {
		l.fallback = name
	}
	return l
}

// Get returns the category record for id.
func (l CategoryLookup) Get(id string) (CategoryRecord, bool) {
	c, ok := l.byID[id]
	return c, ok
}

func (l CategoryLookup) Len() int {
	return len(l.byID)
}

// Resolve maps an expense's category reference to a category id and display
// name. Absent, malformed or dangling references all land in the
// uncategorized bucket.
func (l CategoryLookup) Resolve(ref string) (id, name string) {
	id, ok := ExtractRecordID(ref)
	if !ok {
		return UncategorizedID, l.fallbackName()
	}
	c, found := l.byID[id]
	if !found {
		return UncategorizedID, l.fallbackName()
	}
	return id, displayName(c)
}

// Name returns the display name for a bare category id.
func (l CategoryLookup) Name(id string) string {
	c, ok := l.byID[id]
	if !ok {
		return l.fallbackName()
	}
	return displayName(c)
}

func (l CategoryLookup) fallbackName() string {
	if l.fallback == "" {
		return UncategorizedName
	}
	return l.fallback
}

func displayName(c CategoryRecord) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return UnnamedCategory
}

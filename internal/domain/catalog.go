package domain

import (
	"strconv"
	"strings"
)

type MenuItem struct {
	ID          int
	TenantID    string
	Name        string
	Description *string
	Size        *string
	Price       float64
	IsAvailable bool
}

type MenuLine struct {
	Name  string  `json:"name"`
	Size  *string `json:"size,omitempty"`
	Price float64 `json:"price"`
}

// Render formats the line the way it is shown to the dialogue engine,
// e.g. "- Margherita (Large): 12.5€".
func (l MenuLine) Render() string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(l.Name)
	if l.Size != nil && *l.Size != "" {
		b.WriteString(" (")
		b.WriteString(*l.Size)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(strconv.FormatFloat(l.Price, 'f', -1, 64))
	b.WriteString("€")
	return b.String()
}

// MenuLinesFromItems keeps the available items, preserving their order.
func MenuLinesFromItems(items []MenuItem) []MenuLine {
	lines := make([]MenuLine, 0, len(items))
	for _, item := range items {
		if !item.IsAvailable {
			continue
		}
		lines = append(lines, MenuLine{Name: item.Name, Size: item.Size, Price: item.Price})
	}
	return lines
}

// CatalogSnapshot is the frozen, per-call copy of a tenant's available menu.
// It is never refreshed once a call has started.
type CatalogSnapshot struct {
	tenantID string
	lines    []MenuLine
}

func NewCatalogSnapshot(tenantID string, lines []MenuLine) CatalogSnapshot {
	copied := make([]MenuLine, len(lines))
	copy(copied, lines)
	return CatalogSnapshot{tenantID: tenantID, lines: copied}
}

func (s CatalogSnapshot) TenantID() string {
	return s.tenantID
}

func (s CatalogSnapshot) Len() int {
	return len(s.lines)
}

// Lines returns a copy of the snapshot lines.
func (s CatalogSnapshot) Lines() []MenuLine {
	copied := make([]MenuLine, len(s.lines))
	copy(copied, s.lines)
	return copied
}

func (s CatalogSnapshot) Render() string {
	rendered := make([]string, len(s.lines))
	for i, line := range s.lines {
		rendered[i] = line.Render()
	}
	return strings.Join(rendered, "\n")
}

// Package export renders a user's data for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/dayzy/notes/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

var (
	ErrUnknownFormat  = errors.New("unknown export format")
	ErrPageOutOfRange = errors.New("page out of range")
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatCSV, FormatXML:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", ErrUnknownFormat
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXML:
		return "text/xml"
	}
	return "application/json"
}

func (f Format) FileName() string {
	return "dayzy_export." + string(f)
}

// NoteEntry describes a note without its page bitmaps.
type NoteEntry struct {
	Id        string    `json:"id" xml:"id"`
	Title     string    `json:"title" xml:"title"`
	Pages     int       `json:"pages" xml:"pages"`
	Labels    int       `json:"labels" xml:"labels"`
	ShareCode string    `json:"shareCode,omitempty" xml:"shareCode,omitempty"`
	ShareLink string    `json:"shareLink,omitempty" xml:"shareLink,omitempty"`
	CreatedAt time.Time `json:"createdAt" xml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" xml:"updatedAt"`
}

func NewNoteEntry(n models.Note, shareLink string) NoteEntry {
	return NoteEntry{
		Id:        n.Id,
		Title:     n.Title,
		Pages:     len(n.Pages),
		Labels:    len(n.TextObjects),
		ShareCode: n.ShareCode,
		ShareLink: shareLink,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

type TaskEntry struct {
	Id          string `json:"id" xml:"id"`
	Title       string `json:"title" xml:"title"`
	Description string `json:"description,omitempty" xml:"description,omitempty"`
	Date        string `json:"date" xml:"date"`
	Owner       string `json:"owner" xml:"owner"`
	Priority    string `json:"priority" xml:"priority"`
	Category    string `json:"category" xml:"category"`
	Completed   bool   `json:"completed" xml:"completed"`
}

func NewTaskEntry(t models.Task) TaskEntry {
	return TaskEntry{
		Id:          t.Id,
		Title:       t.Title,
		Description: t.Description,
		Date:        t.Date,
		Owner:       t.Owner,
		Priority:    t.Priority,
		Category:    t.Category,
		Completed:   t.Completed,
	}
}

type Dataset struct {
	XMLName xml.Name    `json:"-" xml:"dayzy"`
	Tasks   []TaskEntry `json:"tasks" xml:"tasks>task"`
	Notes   []NoteEntry `json:"notes" xml:"notes>note"`
}

func NewDataset(tasks []models.Task, notes []models.Note, shareLink func(code string) string) Dataset {
	d := Dataset{
		Tasks: make([]TaskEntry, 0, len(tasks)),
		Notes: make([]NoteEntry, 0, len(notes)),
	}
	for _, t := range tasks {
		d.Tasks = append(d.Tasks, NewTaskEntry(t))
	}
	for _, n := range notes {
		link := ""
		if n.ShareCode != "" && shareLink != nil {
			link = shareLink(n.ShareCode)
		}
		d.Notes = append(d.Notes, NewNoteEntry(n, link))
	}
	return d
}

func Write(w io.Writer, d Dataset, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatCSV:
		return writeCSV(w, d)
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		return enc.Encode(d)
	}
	return ErrUnknownFormat
}

// writeCSV writes one titled section per record kind, separated by blank
// lines.
func writeCSV(w io.Writer, d Dataset) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = false

	if len(d.Tasks) > 0 {
		cw.Write([]string{"TASKS"})
		cw.Write([]string{"ID", "Title", "Date", "Owner", "Priority", "Category", "Completed"})
		for _, t := range d.Tasks {
			cw.Write([]string{t.Id, t.Title, t.Date, t.Owner, t.Priority, t.Category, strconv.FormatBool(t.Completed)})
		}
		cw.Flush()
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}

	if len(d.Notes) > 0 {
		cw.Write([]string{"NOTES"})
		cw.Write([]string{"ID", "Title", "Pages", "Labels", "ShareLink", "CreatedAt", "UpdatedAt"})
		for _, n := range d.Notes {
			cw.Write([]string{
				n.Id, n.Title, strconv.Itoa(n.Pages), strconv.Itoa(n.Labels), n.ShareLink,
				formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
			})
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

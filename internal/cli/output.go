package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format — формат вывода данных.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat проверяет значение флага --output.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (table, json, yaml)", s)
	}
}

var (
	statusStylePending    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	statusStyleInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	statusStyleCompleted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	statusStyleFailed     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	statusStyleSkipped    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	statusStyleStaged     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errorStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// Output управляет форматированием вывода CLI.
type Output struct {
	format Format
	w      io.Writer // stdout для данных
	errW   io.Writer // stderr для сообщений
}

// NewOutput создаёт Output с заданным форматом.
func NewOutput(format Format) *Output {
	return &Output{
		format: format,
		w:      os.Stdout,
		errW:   os.Stderr,
	}
}

// Print выводит данные: таблицу, JSON или YAML в зависимости от формата.
func (o *Output) Print(headers []string, rows [][]string, data any) {
	switch o.format {
	case FormatJSON:
		o.JSON(data)
	case FormatYAML:
		o.YAML(data)
	default:
		o.Table(headers, rows)
	}
}

// Table выводит данные в виде таблицы.
func (o *Output) Table(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(o.w)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// YAML выводит данные в формате YAML.
func (o *Output) YAML(v any) {
	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	enc.Encode(v)
	enc.Close()
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, errorStyle.Render("Error: "+msg))
}

// Status раскрашивает статус шага или релиза для таблицы.
func (o *Output) Status(status string) string {
	if o.format != FormatTable {
		return status
	}
	switch status {
	case "PENDING", "DRAFT":
		return statusStylePending.Render(status)
	case "IN_PROGRESS":
		return statusStyleInProgress.Render(status)
	case "STAGING", "PRODUCTION_PENDING", "PRODUCTION":
		return statusStyleStaged.Render(status)
	case "COMPLETED":
		return statusStyleCompleted.Render(status)
	case "FAILED", "CANCELLED":
		return statusStyleFailed.Render(status)
	case "SKIPPED":
		return statusStyleSkipped.Render(status)
	default:
		return status
	}
}

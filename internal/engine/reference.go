package engine

import (
	"strings"
)

// Части пути полного URL workflow.
const (
	workflowsPath = "/actions/workflows/"
	dispatchPath  = "/dispatches"
)

// Префиксы пути REST API (github.com и Enterprise Server).
var apiPathPrefixes = []string{"api/v3/", "repos/"}

// Param — один статический параметр workflow.
type Param struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Params — упорядоченный набор параметров (порядок как в исходной строке).
type Params []Param

// Get возвращает значение параметра по ключу.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Delete возвращает копию без параметров с данным ключом.
func (p Params) Delete(key string) Params {
	out := make(Params, 0, len(p))
	for _, kv := range p {
		if kv.Key != key {
			out = append(out, kv)
		}
	}
	return out
}

// Map возвращает параметры в виде map. При повторах побеждает последний.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value
	}
	return m
}

// WorkflowReferenceInfo — разобранная ссылка на workflow.
type WorkflowReferenceInfo struct {
	// RepositoryRef — "owner/repo".
	RepositoryRef string `json:"repository_ref" yaml:"repository_ref"`

	// WorkflowID — числовой ID или имя файла workflow.
	WorkflowID string `json:"workflow_id" yaml:"workflow_id"`

	// Params — статические параметры из query string.
	Params Params `json:"params" yaml:"params"`
}

// ParseWorkflowReference разбирает строку из GitHubConfig.WorkflowURLs.
//
// Поддерживаются две формы:
//
//	https://<host>/<owner>/<repo>/actions/workflows/<id>/dispatches?k=v
//	<owner>/<repo>/<id>?k=v
//
// Хост любой (github.com, api.github.com, Enterprise); префиксы API пути
// "repos/" и "api/v3/repos/" отбрасываются. Возвращает false, если строку
// разобрать нельзя.
func ParseWorkflowReference(raw string) (*WorkflowReferenceInfo, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	rest, isURL, ok := trimURLPrefix(raw)
	if !ok {
		return nil, false
	}

	var path, query string

	if isURL {
		repoPart, workflowPart, found := strings.Cut(rest, workflowsPath)
		if !found {
			return nil, false
		}
		workflowPart, query, _ = strings.Cut(workflowPart, "?")
		workflowPart = strings.TrimSuffix(workflowPart, dispatchPath)
		if len(splitSegments(repoPart)) != 2 {
			return nil, false
		}
		path = repoPart + "/" + workflowPart
	} else {
		path, query, _ = strings.Cut(raw, "?")
	}

	segments := splitSegments(path)
	if len(segments) < 3 {
		return nil, false
	}

	return &WorkflowReferenceInfo{
		RepositoryRef: segments[0] + "/" + segments[1],
		WorkflowID:    segments[2],
		Params:        parseQuery(query),
	}, true
}

// ParseRepositoryRef нормализует ссылку на репозиторий к виду "owner/repo".
// Принимает "owner/repo", "https://<host>/owner/repo(.git)" и API URL.
func ParseRepositoryRef(raw string) (string, bool) {
	raw, _, ok := trimURLPrefix(strings.TrimSpace(raw))
	if !ok {
		return "", false
	}
	raw = strings.TrimSuffix(strings.TrimSuffix(raw, "/"), ".git")

	segments := splitSegments(raw)
	if len(segments) < 2 {
		return "", false
	}
	return segments[0] + "/" + segments[1], true
}

// trimURLPrefix отрезает "scheme://host/" и префиксы API пути.
// isURL=false — строка не URL и возвращается как есть; ok=false — URL
// с неподдерживаемой схемой или без хоста.
func trimURLPrefix(raw string) (rest string, isURL, ok bool) {
	beforeQuery, _, _ := strings.Cut(raw, "?")
	if !strings.Contains(beforeQuery, "://") {
		return raw, false, true
	}

	scheme, after, _ := strings.Cut(raw, "://")
	switch strings.ToLower(scheme) {
	case "https", "http":
	default:
		return "", true, false
	}
	host, path, _ := strings.Cut(after, "/")
	if host == "" {
		return "", true, false
	}
	for _, prefix := range apiPathPrefixes {
		path = strings.TrimPrefix(path, prefix)
	}
	return path, true, true
}

func splitSegments(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// parseQuery разбирает "k=v&k2=v2". Параметры без "=" отбрасываются.
// Значения не декодируются.
func parseQuery(query string) Params {
	params := Params{}
	if query == "" {
		return params
	}
	for _, pair := range strings.Split(query, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		params = append(params, Param{Key: key, Value: value})
	}
	return params
}

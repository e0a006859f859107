package playstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// listing describes the fields a fake details page should carry.
type listing struct {
	Title         string
	Description   string
	Score         float64
	Reviews       int64
	Icon          string
	Screenshots   []string
	Developer     string
	UpdatedUnix   int64
	Version       string
	RecentChanges string
}

// detailsPage renders a minimal Play details page around a ds:5 payload.
func detailsPage(t *testing.T, l listing) string {
	t.Helper()
	root := []any{}
	set := func(path string, v any) {
		root = setPath(root, parsePath(path), v).([]any)
	}

	set(pathTitle, l.Title)
	if l.Description != "" {
		set(pathDescription, l.Description)
	}
	if l.Score > 0 {
		set(pathScore, l.Score)
	}
	if l.Reviews > 0 {
		set(pathReviews, l.Reviews)
	}
	if l.Icon != "" {
		set(pathIcon, l.Icon)
	}
	for i, shot := range l.Screenshots {
		set(fmt.Sprintf("1.2.78.0.%d.3.2", i), shot)
	}
	if l.Developer != "" {
		set(pathDeveloper, l.Developer)
	}
	if l.UpdatedUnix > 0 {
		set(pathUpdated, l.UpdatedUnix)
	}
	if l.Version != "" {
		set(pathVersion, l.Version)
	}
	if l.RecentChanges != "" {
		set(pathRecentChanges, l.RecentChanges)
	}

	payload, err := json.Marshal(root)
	require.NoError(t, err)

	return "<html><head><script>AF_initDataCallback({key: 'ds:4', hash: '1', data:[], sideChannel: {}});</script>" +
		"<script>AF_initDataCallback({key: 'ds:5', hash: '7', data:" + string(payload) + ", sideChannel: {}});</script>" +
		"</head><body></body></html>"
}

func parsePath(path string) []int {
	parts := strings.Split(path, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			panic(err)
		}
		out[i] = n
	}
	return out
}

// setPath writes v at the nested index path, growing arrays with nulls.
func setPath(node any, path []int, v any) any {
	if len(path) == 0 {
		return v
	}
	arr, _ := node.([]any)
	for len(arr) <= path[0] {
		arr = append(arr, nil)
	}
	arr[path[0]] = setPath(arr[path[0]], path[1:], v)
	return arr
}

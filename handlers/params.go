package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// parseTopicIDs reads a comma separated id list. Empty tokens are skipped;
// anything else that is not an integer is an error.
func parseTopicIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("topic_ids: %q is not an integer", token)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// optionalIntQuery returns nil when the parameter is absent or blank
func optionalIntQuery(c *gin.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", name, raw)
	}
	return &v, nil
}

// intQuery returns def when the parameter is absent or blank
func intQuery(c *gin.Context, name string, def int) (int, error) {
	v, err := optionalIntQuery(c, name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return def, nil
	}
	return *v, nil
}

func parseID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid case id %q", raw)
	}
	return id, nil
}

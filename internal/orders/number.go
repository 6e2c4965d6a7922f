package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const orderNumberPrefix = "DC"

// NewOrderNumber formats DC<yyyymmdd><8 upper hex chars of id>.
func NewOrderNumber(now time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:8]
	return orderNumberPrefix + now.UTC().Format("20060102") + suffix
}

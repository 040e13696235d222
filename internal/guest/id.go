package guest

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const localIDPrefix = "local_"

// localSeq makes IDs unique within the process even when two are generated
// in the same millisecond with colliding random parts.
var localSeq atomic.Uint64

// NewLocalID returns an on-device identifier of the form
// local_<unix-millis>_<random><seq>.
func NewLocalID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	seq := strconv.FormatUint(localSeq.Add(1), 36)
	return fmt.Sprintf("%s%d_%s%s", localIDPrefix, now.UnixMilli(), random, seq)
}

// IsLocalID reports whether id was generated on-device.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

package ingest

import (
	"context"
	"sync/atomic"

	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
)

// counters 进程级摄取计数
type counters struct {
	total atomic.Int64
	ok    atomic.Int64
	fail  atomic.Int64
}

func (c *counters) log(ctx context.Context, tag string) {
	logger.Info(ctx, "ingest counters",
		"container_tag", tag,
		"sessions_total", c.total.Load(),
		"sessions_ok", c.ok.Load(),
		"sessions_fail", c.fail.Load(),
	)
}

package logger

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync/atomic"
)

// userSampler keeps debug detail for a fixed share of users. A user either
// has all of their updates logged or none, so sampled conversations are
// complete.
type userSampler struct {
	ratio atomic.Uint64 // numerator<<32 | denominator
}

func newUserSampler(numerator, denominator int) *userSampler {
	s := &userSampler{}
	s.Set(numerator, denominator)
	return s
}

// Set configures the share as numerator/denominator. Non-positive values
// disable sampling so every user passes.
func (s *userSampler) Set(numerator, denominator int) {
	if numerator <= 0 || denominator <= 0 {
		s.ratio.Store(0)
		return
	}
	if numerator > denominator {
		numerator = denominator
	}
	s.ratio.Store(uint64(numerator)<<32 | uint64(uint32(denominator)))
}

// Allow reports whether debug events for userID pass. Updates without a
// sender always pass.
func (s *userSampler) Allow(userID int64) bool {
	r := s.ratio.Load()
	num, den := r>>32, r&0xffffffff
	if den == 0 || num == den || userID == 0 {
		return true
	}
	h := fnv.New64a()
	_, _ = h.Write(strconv.AppendInt(nil, userID, 10))
	return h.Sum64()%den < num
}

func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if n, d, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 == nil && err2 == nil {
			return num, den
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}

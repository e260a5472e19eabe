package domain

import "strconv"

// Tier 是缓存的清晰度档位（目录名即档位数字）。
type Tier int

// DefaultTiers 按优先级从高到低排列。
var DefaultTiers = []Tier{80, 64, 32}

func (t Tier) String() string { return strconv.Itoa(int(t)) }

const (
	VideoFragmentName = "video.m4s"
	AudioFragmentName = "audio.m4s"
)

// FragmentPair 是某个档位下同时存在的一对音视频分片。
type FragmentPair struct {
	Tier  Tier
	Video string
	Audio string
}

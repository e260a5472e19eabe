package naming

// CollisionTracker 记录本次运行中已规划的输出路径，用于发现“清洗后同名”导致的覆盖风险。
// 只做检测，不改名；分集按顺序处理，因此不加锁。
type CollisionTracker struct {
	owners map[string]string // output path -> 首个占用它的分集 key
}

func NewCollisionTracker() *CollisionTracker {
	return &CollisionTracker{owners: make(map[string]string)}
}

// Claim 登记 owner 对 path 的占用。若 path 已被另一个 owner 占用，返回先前的 owner 与 true。
// 同一 owner 重复登记不算冲突。
func (c *CollisionTracker) Claim(path, owner string) (string, bool) {
	prev, ok := c.owners[path]
	if !ok {
		c.owners[path] = owner
		return "", false
	}
	if prev == owner {
		return "", false
	}
	return prev, true
}

package utils

import (
	"fmt"
	"sync"
	"time"
)

// ID布局：41位毫秒时间戳 | 5位机房 | 5位节点 | 12位序列
const (
	idEpochMs = int64(1704067200000) // 2024-01-01T00:00:00Z

	datacenterBits = 5
	nodeBits       = 5
	seqBits        = 12

	maxDatacenterId = int64(1)<<datacenterBits - 1
	maxNodeId       = int64(1)<<nodeBits - 1
	seqMask         = int64(1)<<seqBits - 1

	nodeShift       = seqBits
	datacenterShift = seqBits + nodeBits
	timeShift       = seqBits + nodeBits + datacenterBits
)

// IDGenerator 互动域的分布式ID发生器，进程内并发安全
// 同一(机房,节点)组合只允许一个实例持有，否则ID会冲突
type IDGenerator struct {
	mu         sync.Mutex
	datacenter int64
	node       int64
	lastMs     int64
	seq        int64
}

func NewIDGenerator(datacenter, node int64) (*IDGenerator, error) {
	if datacenter < 0 || datacenter > maxDatacenterId {
		return nil, fmt.Errorf("datacenter id %d out of range [0,%d]", datacenter, maxDatacenterId)
	}
	if node < 0 || node > maxNodeId {
		return nil, fmt.Errorf("node id %d out of range [0,%d]", node, maxNodeId)
	}
	return &IDGenerator{datacenter: datacenter, node: node}, nil
}

// NextID 生成单调递增的唯一ID
func (g *IDGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	// 时钟回拨时原地等待追平，不发可能重复的ID
	for now < g.lastMs {
		time.Sleep(time.Duration(g.lastMs-now) * time.Millisecond)
		now = time.Now().UnixMilli()
	}

	if now == g.lastMs {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// 当前毫秒的序列用尽，自旋到下一毫秒
			for now <= g.lastMs {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.seq = 0
	}
	g.lastMs = now

	return (now-idEpochMs)<<timeShift |
		g.datacenter<<datacenterShift |
		g.node<<nodeShift |
		g.seq
}

// DecomposeID 拆出ID的各段，排查冲突和时钟问题用
func DecomposeID(id int64) (ms, datacenter, node, seq int64) {
	ms = id>>timeShift + idEpochMs
	datacenter = id >> datacenterShift & maxDatacenterId
	node = id >> nodeShift & maxNodeId
	seq = id & seqMask
	return
}

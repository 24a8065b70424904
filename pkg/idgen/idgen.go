// Package idgen 基于雪花算法生成带业务前缀的 ID
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator 生成全局唯一 ID
type Generator struct {
	node *snowflake.Node
}

// New 创建节点号为 nodeID 的生成器，nodeID 取值 0-1023
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &Generator{node: node}, nil
}

// Next 返回形如 PREFIX-<id> 的 ID
func (g *Generator) Next(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, g.node.Generate().Int64())
}

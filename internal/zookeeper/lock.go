// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/bazaar/locks" // 所有分布式锁的根节点

// ErrLockTimeout 表示在等待窗口内没有轮到本节点。
var ErrLockTimeout = errors.New("timeout waiting for lock")

// DistributedLock 是基于临时顺序节点的分布式互斥锁。
// 清扫调度器用它保证同一时刻只有一个实例在跑 expire sweep。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的路径, 例如 /bazaar/locks/expire-sweep
	lockNode string // 成功获取锁后, 自己创建的节点路径
	waitMax  time.Duration
}

// NewDistributedLock 创建一个新的分布式锁实例。
func NewDistributedLock(conn *Conn, resourceID string, waitMax time.Duration) (*DistributedLock, error) {
	// 逐级确保父路径存在
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + resourceID
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	if waitMax <= 0 {
		waitMax = 30 * time.Second
	}
	return &DistributedLock{conn: conn, path: lockPath, waitMax: waitMax}, nil
}

func ensurePath(conn *Conn, path string) error {
	current := ""
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		current += "/" + part
		exists, _, err := conn.Exists(current)
		if err != nil {
			return fmt.Errorf("failed to check node %s: %w", current, err)
		}
		if exists {
			continue
		}
		if _, err := conn.Create(current, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("failed to create node %s: %w", current, err)
		}
	}
	return nil
}

// Lock 尝试获取锁，获取不到则阻塞等待，最长等待 waitMax。
func (l *DistributedLock) Lock() error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		// 2. 取出全部等待者并排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		// 3. 自己是最小节点即持有锁
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 4. 否则只监听自己前面的那个节点，避免惊群
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find previous node, something is wrong")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			// 前一个节点刚好被删掉了，重试循环
			if err == zk.ErrNoNode {
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(l.waitMax):
			_ = l.Unlock()
			return ErrLockTimeout
		}
	}
}

// TryLock 非阻塞地尝试获取锁，没拿到立刻返回 false。
func (l *DistributedLock) TryLock() (bool, error) {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return false, fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	children, _, err := l.conn.Children(l.path)
	if err != nil {
		return false, fmt.Errorf("failed to get children nodes: %w", err)
	}
	sort.Strings(children)

	myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
	if myNodeName == children[0] {
		return true, nil
	}
	if err := l.Unlock(); err != nil {
		return false, err
	}
	return false, nil
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

package lineage

import (
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/arcblog-backend/internal/domain"
)

type TreeNode struct {
	Post     *types.Post `json:"post"`
	Children []*TreeNode `json:"children"`
}

// Size counts the nodes of the subtree.
func (n *TreeNode) Size() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}

func lessByCreation(a, b *types.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// assembleTree links the posts of one arc under its root. Posts that cannot
// be reached from the root (a missing parent, a second parentless post, a
// parent cycle) are left out and reported in the returned id list.
func assembleTree(arcID uuid.UUID, posts []*types.Post) (*TreeNode, []uuid.UUID, error) {
	var root *types.Post
	byParent := map[uuid.UUID][]*types.Post{}
	for _, p := range posts {
		if p == nil || p.ArcID != arcID {
			continue
		}
		if p.ParentID == nil {
			if p.ID == arcID {
				root = p
			}
			continue
		}
		byParent[*p.ParentID] = append(byParent[*p.ParentID], p)
	}
	if root == nil {
		return nil, nil, ErrRootNotFound
	}
	for _, kids := range byParent {
		sort.SliceStable(kids, func(i, j int) bool { return lessByCreation(kids[i], kids[j]) })
	}

	visited := map[uuid.UUID]bool{root.ID: true}
	rootNode := &TreeNode{Post: root, Children: []*TreeNode{}}
	queue := []*TreeNode{rootNode}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, child := range byParent[n.Post.ID] {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			cn := &TreeNode{Post: child, Children: []*TreeNode{}}
			n.Children = append(n.Children, cn)
			queue = append(queue, cn)
		}
	}

	var orphans []uuid.UUID
	for _, p := range posts {
		if p == nil || p.ArcID != arcID || visited[p.ID] {
			continue
		}
		orphans = append(orphans, p.ID)
	}
	return rootNode, orphans, nil
}

package lineage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	"github.com/yungbote/arcblog-backend/internal/data/repos/testutil"
	types "github.com/yungbote/arcblog-backend/internal/domain"
)

type fixture struct {
	ctx   context.Context
	db    *gorm.DB
	repos repos.Repos
	svc   Service
	sess  types.Session
}

func newFixture(t *testing.T, vocab ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	b := testutil.SeedBlog(t, ctx, db, "author")
	return &fixture{
		ctx:   ctx,
		db:    db,
		repos: r,
		svc:   NewService(db, log, r.Post, r.Development, Config{InterestVocabulary: vocab}),
		sess:  types.Session{UserID: b.UserID},
	}
}

func TestArcScenario(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "A"})
	if err != nil {
		t.Fatalf("CreateRoot: %v", err)
	}
	if a.ArcID != a.ID || a.ParentID != nil {
		t.Fatalf("root arc=%s id=%s parent=%v", a.ArcID, a.ID, a.ParentID)
	}
	b, err := f.svc.CreateChild(f.ctx, f.sess, a.ID, PostFields{Title: "B"})
	if err != nil {
		t.Fatalf("CreateChild B: %v", err)
	}
	c, err := f.svc.CreateChild(f.ctx, f.sess, b.ID, PostFields{Title: "C"})
	if err != nil {
		t.Fatalf("CreateChild C: %v", err)
	}
	if b.ArcID != a.ID || *b.ParentID != a.ID || c.ArcID != a.ID || *c.ParentID != b.ID {
		t.Fatalf("lineage: b=%+v c=%+v", b, c)
	}

	tree, err := f.svc.BuildTree(f.ctx, a.ID)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if tree.Post.Title != "A" || len(tree.Children) != 1 {
		t.Fatalf("root=%s children=%d", tree.Post.Title, len(tree.Children))
	}
	nb := tree.Children[0]
	if nb.Post.Title != "B" || len(nb.Children) != 1 || nb.Children[0].Post.Title != "C" || len(nb.Children[0].Children) != 0 {
		t.Fatalf("tree shape wrong")
	}
	if tree.Size() != 3 {
		t.Fatalf("size=%d", tree.Size())
	}

	stored, err := f.svc.GetPost(f.ctx, a.ID)
	if err != nil || stored.ArcID != a.ID {
		t.Fatalf("stored root: %+v %v", stored, err)
	}
}

func TestBuildTreeReportsOrphansWithTree(t *testing.T) {
	f := newFixture(t)
	root, _ := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "root"})
	ghost := uuid.New()
	orphan := &types.Post{ID: uuid.New(), ArcID: root.ID, ParentID: &ghost, UserID: f.sess.UserID, Title: "lost", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if _, err := f.repos.Post.Create(f.ctx, nil, []*types.Post{orphan}); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}
	tree, err := f.svc.BuildTree(f.ctx, root.ID)
	var oe *OrphanedPostsError
	if !errors.As(err, &oe) || len(oe.PostIDs) != 1 || oe.PostIDs[0] != orphan.ID {
		t.Fatalf("err=%v", err)
	}
	if tree == nil || tree.Size() != 1 {
		t.Fatalf("tree should still be returned")
	}
	if _, err := f.svc.BuildTree(f.ctx, uuid.New()); !errors.Is(err, ErrRootNotFound) {
		t.Fatalf("unknown arc err=%v", err)
	}
}

func TestCreateChildRequiresOwnerAndParent(t *testing.T) {
	f := newFixture(t)
	root, _ := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "root"})
	if _, err := f.svc.CreateChild(f.ctx, types.Session{UserID: uuid.New()}, root.ID, PostFields{Title: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger err=%v", err)
	}
	if _, err := f.svc.CreateChild(f.ctx, f.sess, uuid.New(), PostFields{Title: "x"}); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("missing parent err=%v", err)
	}
	if _, err := f.svc.CreateRoot(f.ctx, types.Session{}, PostFields{Title: "x"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous err=%v", err)
	}
	if _, err := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "  "}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("blank title err=%v", err)
	}
}

func TestListChildrenInCreationOrder(t *testing.T) {
	f := newFixture(t)
	root, _ := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "root"})
	var want []string
	for _, title := range []string{"one", "two", "three"} {
		if _, err := f.svc.CreateChild(f.ctx, f.sess, root.ID, PostFields{Title: title}); err != nil {
			t.Fatalf("CreateChild: %v", err)
		}
		want = append(want, title)
		time.Sleep(2 * time.Millisecond)
	}
	kids, err := f.svc.ListChildren(f.ctx, root.ID)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	var got []string
	for _, k := range kids {
		got = append(got, k.Title)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("children=%v want %v", got, want)
	}
	if _, err := f.svc.ListChildren(f.ctx, uuid.New()); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("missing post err=%v", err)
	}
	arcs, err := f.svc.ListArcs(f.ctx, f.sess.UserID)
	if err != nil || len(arcs) != 1 || arcs[0].ID != root.ID {
		t.Fatalf("arcs=%v err=%v", arcs, err)
	}
}

func TestCreateNormalizesTagsAndInterests(t *testing.T) {
	f := newFixture(t, "Distributed Systems", "Go")
	p, err := f.svc.CreateRoot(f.ctx, f.sess, PostFields{
		Title:     "Retries",
		Content:   "<p>Retries <b>amplify</b> load.</p><script>x()</script>",
		Tags:      []string{" go ", "Go", "", "latency"},
		Interests: []string{"distributed systems", "GO"},
	})
	if err != nil {
		t.Fatalf("CreateRoot: %v", err)
	}
	if !reflect.DeepEqual([]string(p.TagNames), []string{"go", "latency"}) {
		t.Fatalf("tags=%v", p.TagNames)
	}
	if !reflect.DeepEqual([]string(p.InterestNames), []string{"Distributed Systems", "Go"}) {
		t.Fatalf("interests=%v", p.InterestNames)
	}
	if p.BriefDescription != "Retries amplify load." {
		t.Fatalf("brief=%q", p.BriefDescription)
	}
	if _, err := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "x", Interests: []string{"Cooking"}}); !errors.Is(err, ErrUnknownInterest) {
		t.Fatalf("unknown interest err=%v", err)
	}
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	p, _ := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "Draft", BriefDescription: "Short"})

	title := "Final"
	content := strings.Repeat("word ", 100)
	empty := ""
	tags := []string{"A", "a", "b"}
	updated, err := f.svc.UpdatePost(f.ctx, f.sess, p.ID, PostPatch{Title: &title, Content: &content, BriefDescription: &empty, Tags: &tags})
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if updated.Title != "Final" || !strings.HasSuffix(updated.BriefDescription, "…") || len([]rune(updated.BriefDescription)) > 200 {
		t.Fatalf("updated=%+v", updated)
	}
	stored, _ := f.svc.GetPost(f.ctx, p.ID)
	if stored.Title != "Final" || stored.BriefDescription != updated.BriefDescription || !reflect.DeepEqual([]string(stored.TagNames), []string{"A", "b"}) {
		t.Fatalf("stored=%+v", stored)
	}

	if _, err := f.svc.UpdatePost(f.ctx, types.Session{UserID: uuid.New()}, p.ID, PostPatch{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger err=%v", err)
	}
	blank := " "
	if _, err := f.svc.UpdatePost(f.ctx, f.sess, p.ID, PostPatch{Title: &blank}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("blank title err=%v", err)
	}
}

func TestDeletePostBlockedWhileChildrenExist(t *testing.T) {
	f := newFixture(t)
	root, _ := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "root"})
	child, _ := f.svc.CreateChild(f.ctx, f.sess, root.ID, PostFields{Title: "child"})
	if _, err := f.repos.Development.Create(f.ctx, nil, &types.DevelopmentRecord{PostID: child.ID, Status: "research", Ideas: datatypes.NewJSONType(types.Ideas{})}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if err := f.svc.DeletePost(f.ctx, f.sess, root.ID); !errors.Is(err, ErrPostHasChildren) {
		t.Fatalf("delete parent err=%v", err)
	}
	if err := f.svc.DeletePost(f.ctx, f.sess, child.ID); err != nil {
		t.Fatalf("delete leaf: %v", err)
	}
	if rec, _ := f.repos.Development.GetLatestByPostID(f.ctx, nil, child.ID); rec != nil {
		t.Fatalf("development record survived delete")
	}
	if err := f.svc.DeletePost(f.ctx, f.sess, root.ID); err != nil {
		t.Fatalf("delete now-leaf root: %v", err)
	}
	if _, err := f.svc.GetPost(f.ctx, root.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("root still present: %v", err)
	}
}

func TestAppendImage(t *testing.T) {
	f := newFixture(t)
	p, _ := f.svc.CreateRoot(f.ctx, f.sess, PostFields{Title: "pics"})
	if _, err := f.svc.AppendImage(f.ctx, f.sess, p.ID, "https://cdn/one.png"); err != nil {
		t.Fatalf("AppendImage: %v", err)
	}
	if _, err := f.svc.AppendImage(f.ctx, f.sess, p.ID, "https://cdn/two.png"); err != nil {
		t.Fatalf("AppendImage: %v", err)
	}
	stored, _ := f.svc.GetPost(f.ctx, p.ID)
	if !reflect.DeepEqual([]string(stored.Images), []string{"https://cdn/one.png", "https://cdn/two.png"}) {
		t.Fatalf("images=%v", stored.Images)
	}
}

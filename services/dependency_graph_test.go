package services

import (
	"errors"
	"testing"

	"projectpilot/models"
)

func TestAddDependencySelfLoop(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	project := seedProject(t, db, owner, false)
	task := seedTask(t, db, project, owner, "A")

	if _, err := graph.AddDependency(task.ID, task.ID, owner.ID); !errors.Is(err, ErrSelfDependency) {
		t.Fatalf("expected ErrSelfDependency, got %v", err)
	}
}

func TestAddDependencyCycle(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	project := seedProject(t, db, owner, false)
	a := seedTask(t, db, project, owner, "A")
	b := seedTask(t, db, project, owner, "B")
	c := seedTask(t, db, project, owner, "C")

	// A -> B -> C
	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); err != nil {
		t.Fatalf("A->B: %v", err)
	}
	if _, err := graph.AddDependency(b.ID, c.ID, owner.ID); err != nil {
		t.Fatalf("B->C: %v", err)
	}

	// C -> A would close the cycle
	if _, err := graph.AddDependency(c.ID, a.ID, owner.ID); !errors.Is(err, ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}

	// Direct back edge too
	if _, err := graph.AddDependency(b.ID, a.ID, owner.ID); !errors.Is(err, ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency for back edge, got %v", err)
	}
}

func TestAddDependencyDiamond(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	project := seedProject(t, db, owner, false)
	a := seedTask(t, db, project, owner, "A")
	b := seedTask(t, db, project, owner, "B")
	c := seedTask(t, db, project, owner, "C")
	d := seedTask(t, db, project, owner, "D")

	// A diamond is a DAG, not a cycle: A->B, A->C, B->D, C->D.
	edges := [][2]uint{{a.ID, b.ID}, {a.ID, c.ID}, {b.ID, d.ID}, {c.ID, d.ID}}
	for _, e := range edges {
		if _, err := graph.AddDependency(e[0], e[1], owner.ID); err != nil {
			t.Fatalf("edge %v: %v", e, err)
		}
	}

	deps, err := graph.Dependencies(a.ID)
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 direct dependencies of A, got %d", len(deps))
	}

	dependents, err := graph.Dependents(d.ID)
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if len(dependents) != 2 {
		t.Fatalf("expected 2 dependents of D, got %d", len(dependents))
	}

	// D -> A closes the diamond into a cycle
	if _, err := graph.AddDependency(d.ID, a.ID, owner.ID); !errors.Is(err, ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}
}

func TestAddDependencyDuplicate(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	project := seedProject(t, db, owner, false)
	a := seedTask(t, db, project, owner, "A")
	b := seedTask(t, db, project, owner, "B")

	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); !errors.Is(err, ErrDuplicateDependency) {
		t.Fatalf("expected ErrDuplicateDependency, got %v", err)
	}
}

func TestAddDependencyCrossProject(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	other := seedUser(t, db, "200")
	p1 := seedProject(t, db, owner, false)
	p2 := seedProject(t, db, other, false)
	a := seedTask(t, db, p1, owner, "A")
	b := seedTask(t, db, p2, other, "B")

	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); !errors.Is(err, ErrCrossProjectDependency) {
		t.Fatalf("expected ErrCrossProjectDependency, got %v", err)
	}
}

func TestAddDependencyAuthorization(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	outsider := seedUser(t, db, "200")
	project := seedProject(t, db, owner, false)
	a := seedTask(t, db, project, owner, "A")
	b := seedTask(t, db, project, owner, "B")

	if _, err := graph.AddDependency(a.ID, b.ID, outsider.ID); !errors.Is(err, ErrNotProjectMember) {
		t.Fatalf("expected ErrNotProjectMember, got %v", err)
	}

	if _, err := graph.AddDependency(a.ID, 99999, owner.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestCheckCompletable(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	project := seedProject(t, db, owner, false)
	a := seedTask(t, db, project, owner, "A")
	b := seedTask(t, db, project, owner, "B")
	c := seedTask(t, db, project, owner, "C")

	// A depends on B, B depends on C.
	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); err != nil {
		t.Fatalf("A->B: %v", err)
	}
	if _, err := graph.AddDependency(b.ID, c.ID, owner.ID); err != nil {
		t.Fatalf("B->C: %v", err)
	}

	err := graph.CheckCompletable(a.ID)
	var notSatisfied *DependencyNotSatisfiedError
	if !errors.As(err, &notSatisfied) {
		t.Fatalf("expected DependencyNotSatisfiedError, got %v", err)
	}
	if notSatisfied.Title != "B" {
		t.Errorf("expected blocking task B, got %q", notSatisfied.Title)
	}

	// Only direct dependencies gate completion: once B is done, A may
	// complete even though C (transitive) is still open.
	if err := db.Model(&models.Task{}).Where("id = ?", b.ID).Update("status", models.TaskStatusDone).Error; err != nil {
		t.Fatalf("mark B done: %v", err)
	}
	if err := graph.CheckCompletable(a.ID); err != nil {
		t.Fatalf("expected A completable, got %v", err)
	}
}

func TestRemoveDependency(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	project := seedProject(t, db, owner, false)
	a := seedTask(t, db, project, owner, "A")
	b := seedTask(t, db, project, owner, "B")

	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := graph.RemoveDependency(a.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := graph.RemoveDependency(a.ID, b.ID); !errors.Is(err, ErrDependencyNotFound) {
		t.Fatalf("expected ErrDependencyNotFound, got %v", err)
	}

	// Removing the edge re-opens it for re-adding.
	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); err != nil {
		t.Fatalf("re-add: %v", err)
	}
}

func TestDeleteTaskEdges(t *testing.T) {
	db := testDB(t)
	graph := NewDependencyGraph(db, testLogger())

	owner := seedUser(t, db, "100")
	project := seedProject(t, db, owner, false)
	a := seedTask(t, db, project, owner, "A")
	b := seedTask(t, db, project, owner, "B")
	c := seedTask(t, db, project, owner, "C")

	// A -> B, B -> C: deleting B must remove edges on both sides.
	if _, err := graph.AddDependency(a.ID, b.ID, owner.ID); err != nil {
		t.Fatalf("A->B: %v", err)
	}
	if _, err := graph.AddDependency(b.ID, c.ID, owner.ID); err != nil {
		t.Fatalf("B->C: %v", err)
	}

	if err := graph.DeleteTaskEdges(db, b.ID); err != nil {
		t.Fatalf("DeleteTaskEdges: %v", err)
	}

	var count int64
	db.Model(&models.TaskDependency{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no edges left, got %d", count)
	}

	// A -> C is now legal: the path through B is gone.
	if _, err := graph.AddDependency(c.ID, a.ID, owner.ID); err != nil {
		t.Fatalf("C->A after B removal: %v", err)
	}
}

package services

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/models"
)

// DependencyGraph manages the directed dependency edges between tasks and
// guarantees the graph stays acyclic.
type DependencyGraph struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDependencyGraph(db *gorm.DB, logger *log.Logger) *DependencyGraph {
	return &DependencyGraph{DB: db, Logger: logger}
}

// AddDependency records that task taskID depends on task dependsOnID.
// Both tasks must exist in the same project, the actor must be a member of
// that project, and the new edge must not close a cycle.
func (g *DependencyGraph) AddDependency(taskID, dependsOnID, actorID uint) (*models.TaskDependency, error) {
	if taskID == dependsOnID {
		return nil, ErrSelfDependency
	}

	var task, dependsOn models.Task
	if err := g.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if err := g.DB.First(&dependsOn, dependsOnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if task.ProjectID != dependsOn.ProjectID {
		return nil, ErrCrossProjectDependency
	}

	var member models.ProjectMember
	err := g.DB.Where("project_id = ? AND user_id = ?", task.ProjectID, actorID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotProjectMember
	} else if err != nil {
		return nil, err
	}

	var count int64
	if err := g.DB.Model(&models.TaskDependency{}).
		Where("task_id = ? AND depends_on_id = ?", taskID, dependsOnID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateDependency
	}

	// Adding taskID -> dependsOnID closes a cycle exactly when taskID is
	// already reachable from dependsOnID through existing edges.
	reachable, err := g.reachable(dependsOnID, taskID)
	if err != nil {
		return nil, err
	}
	if reachable {
		return nil, ErrCircularDependency
	}

	dep := models.TaskDependency{TaskID: taskID, DependsOnID: dependsOnID}
	if err := g.DB.Create(&dep).Error; err != nil {
		return nil, err
	}

	g.Logger.WithFields(log.Fields{
		"task_id":       taskID,
		"depends_on_id": dependsOnID,
	}).Info("Dependency added")
	return &dep, nil
}

// reachable walks the dependency edges breadth-first from start and reports
// whether target can be reached. Edges are loaded in batches, one query per
// frontier level.
func (g *DependencyGraph) reachable(start, target uint) (bool, error) {
	visited := map[uint]bool{start: true}
	frontier := []uint{start}

	for len(frontier) > 0 {
		var edges []models.TaskDependency
		if err := g.DB.Where("task_id IN ?", frontier).Find(&edges).Error; err != nil {
			return false, err
		}

		frontier = frontier[:0]
		for _, edge := range edges {
			if edge.DependsOnID == target {
				return true, nil
			}
			if !visited[edge.DependsOnID] {
				visited[edge.DependsOnID] = true
				frontier = append(frontier, edge.DependsOnID)
			}
		}
	}
	return false, nil
}

// RemoveDependency deletes a single edge.
func (g *DependencyGraph) RemoveDependency(taskID, dependsOnID uint) error {
	result := g.DB.Where("task_id = ? AND depends_on_id = ?", taskID, dependsOnID).
		Delete(&models.TaskDependency{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDependencyNotFound
	}
	return nil
}

// Dependencies returns the tasks that taskID depends on.
func (g *DependencyGraph) Dependencies(taskID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := g.DB.
		Joins("JOIN task_dependencies ON task_dependencies.depends_on_id = tasks.id").
		Where("task_dependencies.task_id = ?", taskID).
		Find(&tasks).Error
	return tasks, err
}

// Dependents returns the tasks that depend on taskID.
func (g *DependencyGraph) Dependents(taskID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := g.DB.
		Joins("JOIN task_dependencies ON task_dependencies.task_id = tasks.id").
		Where("task_dependencies.depends_on_id = ?", taskID).
		Find(&tasks).Error
	return tasks, err
}

// CheckCompletable reports whether taskID may transition to done. Only the
// direct dependencies are consulted; an incomplete one surfaces as a
// DependencyNotSatisfiedError naming the blocking task.
func (g *DependencyGraph) CheckCompletable(taskID uint) error {
	deps, err := g.Dependencies(taskID)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if dep.Status != models.TaskStatusDone {
			return &DependencyNotSatisfiedError{Title: dep.Title}
		}
	}
	return nil
}

// DeleteTaskEdges removes every edge touching taskID. Meant to run inside
// the task deletion transaction.
func (g *DependencyGraph) DeleteTaskEdges(tx *gorm.DB, taskID uint) error {
	return tx.Where("task_id = ? OR depends_on_id = ?", taskID, taskID).
		Delete(&models.TaskDependency{}).Error
}

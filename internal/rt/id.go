package rt

import "github.com/golibos/libos/internal/idgen"

// TaskID uniquely identifies a spawned task for its lifetime.
type TaskID uint64

var taskIDGen = idgen.NewGenerator()

func nextTaskID() TaskID { return TaskID(taskIDGen.Next()) }

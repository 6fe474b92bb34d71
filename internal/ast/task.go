package ast

// Input is a task or workflow `input { ... }` section.
type Input struct {
	Declarations []Anchor[InputDeclaration]
}

// Output is a task or workflow `output { ... }` section.
type Output struct {
	Declarations []Anchor[BoundDeclaration]
}

// Command is a task's `command <<< ... >>>` or `command { ... }` section.
// Both syntactic forms lower to the same Parts sequence; which delimiter
// pair was used in source is not retained, per spec.
type Command struct {
	Parts []Anchor[StringPart]
}

// RuntimeAttribute is one `name: expression` entry of a Runtime section.
type RuntimeAttribute struct {
	Name       Anchor[string]
	Expression Anchor[Expression]
}

// Runtime is a task's `runtime { ... }` section.
type Runtime struct {
	Attributes []Anchor[RuntimeAttribute]
}

// TaskElement is one element of a Task body. Exactly one field is set.
type TaskElement struct {
	Input         *Input
	Output        *Output
	Declaration   *BoundDeclaration
	Command       *Command
	Runtime       *Runtime
	Meta          *Meta
	ParameterMeta *Meta
}

// Task is a `task name { ... }` definition.
type Task struct {
	Name Anchor[string]
	Body []Anchor[TaskElement]
}

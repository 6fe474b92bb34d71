package ast

// ValidateTask enforces Task's structural invariants: at most one each of
// Input, Output, Runtime, Meta, ParameterMeta, and exactly one Command.
func ValidateTask(t *Task) error {
	seen := make(map[string]bool, 6)
	haveCommand := false
	for _, anchored := range t.Body {
		el := anchored.Element
		var kind string
		switch {
		case el.Input != nil:
			kind = "input"
		case el.Output != nil:
			kind = "output"
		case el.Runtime != nil:
			kind = "runtime"
		case el.Meta != nil:
			kind = "meta"
		case el.ParameterMeta != nil:
			kind = "parameter_meta"
		case el.Command != nil:
			haveCommand = true
			continue
		default:
			continue
		}
		if seen[kind] {
			return TaskRepeatedElement(t.Name.Element, kind)
		}
		seen[kind] = true
	}
	if !haveCommand {
		return TaskMissingCommand(t.Name.Element)
	}
	return nil
}

// ValidateWorkflow enforces Workflow's structural invariants: at most one
// each of Input, Output, Meta, ParameterMeta.
func ValidateWorkflow(w *Workflow) error {
	seen := make(map[string]bool, 4)
	for _, anchored := range w.Body {
		el := anchored.Element
		var kind string
		switch {
		case el.Input != nil:
			kind = "input"
		case el.Output != nil:
			kind = "output"
		case el.Meta != nil:
			kind = "meta"
		case el.ParameterMeta != nil:
			kind = "parameter_meta"
		default:
			continue
		}
		if seen[kind] {
			return WorkflowRepeatedElement(w.Name.Element, kind)
		}
		seen[kind] = true
	}
	return nil
}

// ValidateDocument enforces Document's structural invariants: at least one
// Struct/Task/Workflow element, and at most one Workflow. It also runs
// ValidateTask/ValidateWorkflow over every Task/Workflow element.
func ValidateDocument(d *Document) error {
	elementCount := 0
	workflowCount := 0
	for i := range d.Body {
		el := &d.Body[i].Element
		switch {
		case el.Task != nil:
			if err := ValidateTask(el.Task); err != nil {
				return err
			}
			elementCount++
		case el.Workflow != nil:
			if err := ValidateWorkflow(el.Workflow); err != nil {
				return err
			}
			elementCount++
			workflowCount++
		case el.Struct != nil:
			elementCount++
		}
	}
	if elementCount == 0 {
		return DocumentIncomplete()
	}
	if workflowCount > 1 {
		return DocumentMultipleWorkflows()
	}
	return nil
}

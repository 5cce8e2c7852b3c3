package core

import "modelcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Element            = domain.Element
	Relationship       = domain.Relationship
	Diagram            = domain.Diagram
	DiagramObject      = domain.DiagramObject
	Snapshot           = domain.Snapshot
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityElement       = domain.EntityElement
	EntityRelationship  = domain.EntityRelationship
	EntityDiagram       = domain.EntityDiagram
	EntityDiagramObject = domain.EntityDiagramObject
	EntityDiagramLink   = domain.EntityDiagramLink
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

package policy

// DefaultPolicyPackage is the Rego package queried for access decisions.
const DefaultPolicyPackage = "guidedmodules.authz"

// DefaultPolicy grants access within the actor's organization:
//   - the task's editor may read and write it;
//   - project members may read;
//   - project admins may write.
//
// Operator policies in the same package may add allow_read / allow_write
// rules or deny messages; any deny message blocks the access.
const DefaultPolicy = `package guidedmodules.authz

import rego.v1

default allow_read := false

default allow_write := false

same_org if input.actor.organization_id == input.task.organization_id

editor if {
	same_org
	input.actor.user_id == input.task.editor_id
}

member if {
	same_org
	is_object(input.membership)
}

admin if {
	member
	input.membership.admin == true
}

allow_read if editor

allow_read if member

allow_write if editor

allow_write if admin
`

// DefaultPolicyTests exercises DefaultPolicy with opa test semantics.
const DefaultPolicyTests = `package guidedmodules.authz

import rego.v1

task := {"id": "task-00000001", "project_id": "proj-00000001", "organization_id": "acme", "editor_id": "alice"}

test_editor_reads_and_writes if {
	allow_read with input as {"actor": {"user_id": "alice", "organization_id": "acme"}, "task": task, "membership": null}
	allow_write with input as {"actor": {"user_id": "alice", "organization_id": "acme"}, "task": task, "membership": null}
}

test_member_reads_only if {
	allow_read with input as {"actor": {"user_id": "bob", "organization_id": "acme"}, "task": task, "membership": {"admin": false}}
	not allow_write with input as {"actor": {"user_id": "bob", "organization_id": "acme"}, "task": task, "membership": {"admin": false}}
}

test_admin_writes if {
	allow_write with input as {"actor": {"user_id": "carol", "organization_id": "acme"}, "task": task, "membership": {"admin": true}}
}

test_other_org_denied if {
	not allow_read with input as {"actor": {"user_id": "alice", "organization_id": "globex"}, "task": task, "membership": {"admin": true}}
}

test_stranger_denied if {
	not allow_read with input as {"actor": {"user_id": "mallory", "organization_id": "acme"}, "task": task, "membership": null}
}
`

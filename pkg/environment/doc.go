// Package environment loads the two documents that drive a frycook run: the
// settings document, which configures the engine itself, and the environment
// document, which describes the users, computers and groups recipes are applied
// to.
//
// # Environment document
//
// The environment is a tree of mappings with three sections that are always
// present after loading:
//
//	users:
//	  root:
//	    ssh_public_key: "ssh-ed25519 AAAA..."
//	computers:
//	  test1:
//	    domain_name: fubu.example
//	    host_group: test
//	    public_ips: {"192.168.56.10": test1.fubu.example}
//	    components:
//	      - {kind: cookbook, name: base}
//	      - {kind: recipe, name: nginx}
//	groups:
//	  test:
//	    computers: [test1]
//
// Any mapping, at the top of a document or at the top of a section, may carry
// an imports list. Each listed file is loaded as a full document (its own
// imports resolved first) and merged into the importing mapping in list order;
// the importing mapping's own keys take precedence. Relative import paths are
// resolved against the process working directory. Import cycles are reported
// as configuration errors.
//
// # Home-directory expansion
//
// After imports are resolved, every text value whose key contains "path" or
// "dir" has "~" replaced with the invoking user's home directory. The pass
// recurses through the whole tree and applies to both documents.
//
// Loaded documents are shared read-only by every recipe and cookbook instance
// of a run and must not be modified.
package environment

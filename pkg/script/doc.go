/*
Package script loads recipes and cookbooks written in Starlark.

Every *.star file in the configured recipe directory defines one recipe named
after the file. A recipe script may define any of these functions:

	def pre_apply_message():
	    return "nginx will be restarted"

	def pre_apply_checks(ctx):
	    if not ctx.ok_to_be_rude:
	        ctx.fail("rerun with --rude")

	def apply(ctx):
	    ctx.package_ensure("nginx")
	    ctx.push_package_file_set("nginx", env = {"workers": 4})
	    ctx.service_restart("nginx")

	def post_apply_message(ctx):
	    return "nginx configured on " + ctx.computer

	def cleanup(ctx):
	    ctx.sudo("rm -f /etc/nginx/sites-enabled/default")

Message functions may omit the ctx parameter. The ctx value carries computer,
environment, settings, params, ok_to_be_rude and no_prompt, plus the remote
helpers push_package_file_set, push_file, push_template, run, sudo,
package_ensure, service_restart, service_reload, dir_ensure, file_link and
fail.

A script that assigns COOKBOOK defines a cookbook instead:

	COOKBOOK = ["nginx", "example_com"]
	PRE_APPLY_MESSAGE = "web tier update"

Scripted definitions replace built-in ones with the same name.
*/
package script

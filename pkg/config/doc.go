/*
Package config loads the daemon configuration from the environment.

Every variable carries the ONEM2M_ prefix (ONEM2M_DATA_DIR, ONEM2M_HTTP_ADDR,
ONEM2M_LOG_LEVEL, ...); a .env file in the working directory is merged first
when present. Defaults make a bare `onem2md serve` usable out of the box.

The package also parses the optional provisioning file, a small YAML list of
CSEs created at startup:

	cses:
	  - name: cse1
	    cseId: /in-cse-1
	    cseType: IN-CSE
*/
package config

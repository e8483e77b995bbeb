// @title           ERP Approval API
// @version         1.0
// @description     Hierarchical multi-level approval engine for ERP business transactions

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token from Keycloak
package main

import "github.com/mautops/erp-approval/cmd"

func main() {
	cmd.Execute()
}

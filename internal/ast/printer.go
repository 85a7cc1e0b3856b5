package ast

import (
	"fmt"
	"strings"

	"github.com/lhaig/flowgraph/internal/lexer"
)

// Print returns a tree-like string representation of the AST for debugging
func Print(node Node) string {
	var sb strings.Builder
	printNode(&sb, node, 0)
	return sb.String()
}

func printNode(sb *strings.Builder, node Node, indent int) {
	if node == nil {
		return
	}

	prefix := strings.Repeat("  ", indent)
	line := func(format string, args ...any) {
		sb.WriteString(prefix)
		fmt.Fprintf(sb, format, args...)
		sb.WriteString("\n")
	}

	switch n := node.(type) {
	case *Program:
		line("Program")
		for _, imp := range n.Imports {
			printNode(sb, imp, indent+1)
		}
		for _, td := range n.Types {
			printNode(sb, td, indent+1)
		}
		for _, v := range n.Vars {
			printNode(sb, v, indent+1)
		}
		for _, cls := range n.Classes {
			printNode(sb, cls, indent+1)
		}
		for _, fn := range n.Functions {
			printNode(sb, fn, indent+1)
		}
		for _, svc := range n.Services {
			printNode(sb, svc, indent+1)
		}

	case *ImportDecl:
		line("Import: %s as %s", n.Path(), n.Prefix)

	case *TypeDecl:
		line("Type: %s = %s", n.Name, TypeString(n.Type))

	case *ClassDecl:
		kind := "Class"
		if n.IsClient {
			kind = "ClientClass"
		}
		line("%s: %s", kind, n.Name)
		for _, inc := range n.Includes {
			line("  Includes: %s", TypeString(inc))
		}
		for _, f := range n.Fields {
			line("  Field: %s %s", TypeString(f.Type), f.Name)
		}
		if n.Init != nil {
			printNode(sb, n.Init, indent+1)
		}
		for _, m := range n.Methods {
			printNode(sb, m, indent+1)
		}

	case *ServiceDecl:
		line("Service: %s", n.BasePath)
		for _, m := range n.Methods {
			printNode(sb, m, indent+1)
		}

	case *FunctionDecl:
		line("Function: %s", n.Name)
		printParams(sb, n.Params, indent+1)
		if n.ReturnType != nil {
			line("  Returns: %s", TypeString(n.ReturnType))
		}
		printNode(sb, n.Body, indent+1)

	case *MethodDecl:
		switch n.Kind {
		case RemoteMethod:
			line("RemoteMethod: %s", n.Name)
		case ResourceMethod:
			segs := make([]string, len(n.Path))
			for i, s := range n.Path {
				segs[i] = s.Name
				if s.IsParam() {
					segs[i] = "[" + s.Name + "]"
				}
			}
			line("ResourceMethod: %s /%s", n.Accessor, strings.Join(segs, "/"))
		default:
			line("Method: %s", n.Name)
		}
		printParams(sb, n.Params, indent+1)
		printNode(sb, n.Body, indent+1)

	case *Block:
		line("Block")
		for _, stmt := range n.Statements {
			printNode(sb, stmt, indent+1)
		}

	case *CommentStmt:
		line("Comment: %q", n.Text)

	case *VarDecl:
		line("VarDecl: %s %s", TypeString(n.Type), n.Name)
		printNode(sb, n.Value, indent+1)

	case *AssignStmt:
		line("Assign")
		printNode(sb, n.Target, indent+1)
		printNode(sb, n.Value, indent+1)

	case *ExprStmt:
		line("ExprStmt")
		printNode(sb, n.Expr, indent+1)

	case *IfStmt:
		line("If")
		printNode(sb, n.Condition, indent+1)
		printNode(sb, n.Then, indent+1)
		if n.Else != nil {
			line("Else")
			printNode(sb, n.Else, indent+1)
		}

	case *WhileStmt:
		line("While")
		printNode(sb, n.Condition, indent+1)
		printNode(sb, n.Body, indent+1)
		printOnFail(sb, n.OnFail, indent+1)

	case *ForeachStmt:
		line("Foreach: %s %s", TypeString(n.VarType), n.Variable)
		printNode(sb, n.Iterable, indent+1)
		printNode(sb, n.Body, indent+1)
		printOnFail(sb, n.OnFail, indent+1)

	case *MatchStmt:
		line("Match")
		printNode(sb, n.Subject, indent+1)
		for _, c := range n.Clauses {
			line("  Clause")
			for _, p := range c.Patterns {
				printNode(sb, p, indent+2)
			}
			if c.Guard != nil {
				line("    Guard")
				printNode(sb, c.Guard, indent+3)
			}
			printNode(sb, c.Body, indent+2)
		}
		printOnFail(sb, n.OnFail, indent+1)

	case *DoStmt:
		line("Do")
		printNode(sb, n.Body, indent+1)
		printOnFail(sb, n.OnFail, indent+1)

	case *ForkStmt:
		line("Fork")
		for _, w := range n.Workers {
			printNode(sb, w, indent+1)
		}

	case *WorkerDecl:
		line("Worker: %s", n.Name)
		printNode(sb, n.Body, indent+1)

	case *TransactionStmt:
		line("Transaction")
		printNode(sb, n.Body, indent+1)
		printOnFail(sb, n.OnFail, indent+1)

	case *RetryStmt:
		if n.Transaction {
			line("RetryTransaction")
		} else {
			line("Retry")
		}
		for _, a := range n.Args {
			printNode(sb, a.Value, indent+1)
		}
		printNode(sb, n.Body, indent+1)
		printOnFail(sb, n.OnFail, indent+1)

	case *LockStmt:
		line("Lock")
		printNode(sb, n.Body, indent+1)
		printOnFail(sb, n.OnFail, indent+1)

	case *ReturnStmt:
		line("Return")
		printNode(sb, n.Value, indent+1)

	case *PanicStmt:
		line("Panic")
		printNode(sb, n.Value, indent+1)

	case *FailStmt:
		line("Fail")
		printNode(sb, n.Value, indent+1)

	case *BreakStmt:
		line("Break")

	case *ContinueStmt:
		line("Continue")

	case *Identifier:
		line("Identifier: %s", n.Name)

	case *QualifiedIdent:
		line("QualifiedIdent: %s:%s", n.Prefix, n.Name)

	case *SelfExpr:
		line("Self")

	case *IntLit:
		line("IntLit: %s", n.Value)

	case *FloatLit:
		line("FloatLit: %s", n.Value)

	case *StringLit:
		line("StringLit: %s", n.Value)

	case *BoolLit:
		line("BoolLit: %t", n.Value)

	case *NilLit:
		line("NilLit")

	case *TemplateLit:
		line("Template: %s `%s`", n.Tag, n.Raw)

	case *ListLit:
		line("List")
		for _, e := range n.Elements {
			printNode(sb, e, indent+1)
		}

	case *MappingLit:
		line("Mapping")
		for _, f := range n.Fields {
			if f.Spread {
				line("  ...")
			} else {
				line("  %s:", f.Key)
			}
			printNode(sb, f.Value, indent+2)
		}

	case *ParenExpr:
		line("Paren")
		printNode(sb, n.Inner, indent+1)

	case *BinaryExpr:
		line("BinaryExpr: %s", OperatorString(n.Op))
		printNode(sb, n.Left, indent+1)
		printNode(sb, n.Right, indent+1)

	case *UnaryExpr:
		line("UnaryExpr: %s", OperatorString(n.Op))
		printNode(sb, n.Operand, indent+1)

	case *TypeCastExpr:
		line("TypeCast: %s", TypeString(n.Type))
		printNode(sb, n.Value, indent+1)

	case *CallExpr:
		line("Call")
		printNode(sb, n.Func, indent+1)
		printArgs(sb, n.Args, indent+1)

	case *MethodCallExpr:
		line("MethodCall: %s", n.Method)
		printNode(sb, n.Object, indent+1)
		printArgs(sb, n.Args, indent+1)

	case *RemoteCallExpr:
		line("RemoteCall: %s", n.Method)
		printNode(sb, n.Object, indent+1)
		printArgs(sb, n.Args, indent+1)

	case *ResourceCallExpr:
		line("ResourceCall: %s", n.Accessor)
		printNode(sb, n.Object, indent+1)
		printArgs(sb, n.Args, indent+1)

	case *FieldAccessExpr:
		line("FieldAccess: %s", n.Field)
		printNode(sb, n.Object, indent+1)

	case *IndexExpr:
		line("Index")
		printNode(sb, n.Object, indent+1)
		printNode(sb, n.Index, indent+1)

	case *NewExpr:
		line("New: %s", TypeString(n.Type))
		printArgs(sb, n.Args, indent+1)

	case *CheckExpr:
		if n.Panic {
			line("CheckPanic")
		} else {
			line("Check")
		}
		printNode(sb, n.Expr, indent+1)

	case *StartExpr:
		line("Start")
		printNode(sb, n.Call, indent+1)

	case *WaitExpr:
		line("Wait")
		printNode(sb, n.Future, indent+1)
		for _, f := range n.Fields {
			line("  %s:", f.Key)
			printNode(sb, f.Future, indent+2)
		}

	case *AlternateWait:
		line("Alternate")
		printNode(sb, n.Left, indent+1)
		printNode(sb, n.Right, indent+1)

	case *InferredDefault:
		line("Inferred")

	default:
		line("Unknown node type: %T", node)
	}
}

func printParams(sb *strings.Builder, params []*Param, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, p := range params {
		mark := ""
		switch {
		case p.Rest:
			mark = "..."
		case p.Included:
			mark = "*"
		}
		fmt.Fprintf(sb, "%sParam: %s%s %s\n", prefix, mark, TypeString(p.Type), p.Name)
	}
}

func printArgs(sb *strings.Builder, args []*Arg, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, a := range args {
		switch {
		case a.Name != "":
			fmt.Fprintf(sb, "%sArg: %s =\n", prefix, a.Name)
		case a.Spread:
			fmt.Fprintf(sb, "%sArg: ...\n", prefix)
		default:
			fmt.Fprintf(sb, "%sArg:\n", prefix)
		}
		printNode(sb, a.Value, indent+1)
	}
}

func printOnFail(sb *strings.Builder, clause *OnFailClause, indent int) {
	if clause == nil {
		return
	}
	fmt.Fprintf(sb, "%sOnFail: %s\n", strings.Repeat("  ", indent), clause.ErrName)
	printNode(sb, clause.Body, indent+1)
}

// TypeString renders a type descriptor in source form.
func TypeString(t *TypeRef) string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	switch {
	case len(t.Members) > 0:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = TypeString(m)
		}
		sb.WriteString(strings.Join(parts, "|"))
		if t.ArrayDims > 0 || t.Optional {
			return "(" + sb.String() + ")" + suffix(t)
		}
		return sb.String()
	case t.Record != nil:
		sb.WriteString("record {")
		for _, f := range t.Record.Fields {
			fmt.Fprintf(&sb, " %s %s;", TypeString(f.Type), f.Name)
		}
		if t.Record.Rest != nil {
			fmt.Fprintf(&sb, " %s...;", TypeString(t.Record.Rest))
		}
		sb.WriteString(" }")
	default:
		if t.Prefix != "" {
			sb.WriteString(t.Prefix + ":")
		}
		sb.WriteString(t.Name)
		if len(t.TypeArgs) > 0 {
			args := make([]string, len(t.TypeArgs))
			for i, a := range t.TypeArgs {
				args[i] = TypeString(a)
			}
			sb.WriteString("<" + strings.Join(args, ", ") + ">")
		}
	}
	return sb.String() + suffix(t)
}

func suffix(t *TypeRef) string {
	s := strings.Repeat("[]", t.ArrayDims)
	if t.Optional {
		s += "?"
	}
	return s
}

// OperatorString returns the source spelling of an operator token.
func OperatorString(tt lexer.TokenType) string {
	switch tt {
	case lexer.PLUS:
		return "+"
	case lexer.MINUS:
		return "-"
	case lexer.STAR:
		return "*"
	case lexer.SLASH:
		return "/"
	case lexer.PERCENT:
		return "%"
	case lexer.EQ:
		return "=="
	case lexer.NEQ:
		return "!="
	case lexer.LT:
		return "<"
	case lexer.LEQ:
		return "<="
	case lexer.GT:
		return ">"
	case lexer.GEQ:
		return ">="
	case lexer.AND:
		return "&&"
	case lexer.OR:
		return "||"
	case lexer.NOT:
		return "!"
	case lexer.PIPE:
		return "|"
	default:
		return tt.String()
	}
}
